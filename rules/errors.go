package rules

import "errors"

// ErrInvalidSelection reports an unresolvable trip or station reference in a
// rule selection. No rule is created.
var ErrInvalidSelection = errors.New("invalid selection")

// ErrMalformedSchedule reports a timetable time string that cannot be parsed.
// No rule is created.
var ErrMalformedSchedule = errors.New("malformed schedule")
