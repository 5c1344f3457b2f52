package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/theoremus-urban-solutions/gtfsrt-trigger/timetable"
)

// MaxStopsBefore is the policy limit on how early a stop-arrival
// notification may fire, in stops before the target.
const MaxStopsBefore = 4

// Selection is a user's high-level rule choice, assembled by the rules API
// from timetable slices the caller already fetched.
type Selection struct {
	FeedID     string
	OwnerID    string
	WebhookURL string

	Kind ConditionKind

	// Stop-arrival fields.
	TripID            string
	TargetStopID      string
	StopsBefore       int
	TripStopTimes     []timetable.RealtimeStopTime // chosen trip's stop sequence
	BoardingStopTimes []timetable.RealtimeStopTime // slice at the boarding station, display only

	// Geofence fields.
	Points []GeoPoint
}

// Compile translates a selection into an immutable trigger rule. The
// description is generated here, once, and never re-derived by the engine.
func Compile(sel Selection) (TriggerRule, error) {
	switch sel.Kind {
	case StopArrival:
		return compileStopArrival(sel)
	case GeofenceCrossing:
		return compileGeofence(sel)
	default:
		return TriggerRule{}, fmt.Errorf("%w: unknown condition kind %q", ErrInvalidSelection, sel.Kind)
	}
}

func compileStopArrival(sel Selection) (TriggerRule, error) {
	if sel.TripID == "" {
		return TriggerRule{}, fmt.Errorf("%w: no trip selected", ErrInvalidSelection)
	}
	if sel.StopsBefore < 0 || sel.StopsBefore > MaxStopsBefore {
		return TriggerRule{}, fmt.Errorf("%w: stops-before offset %d outside 0..%d", ErrInvalidSelection, sel.StopsBefore, MaxStopsBefore)
	}
	seq := stopSequenceForTrip(sel.TripStopTimes, sel.TripID)
	if len(seq) == 0 {
		return TriggerRule{}, fmt.Errorf("%w: trip %q not found in timetable", ErrInvalidSelection, sel.TripID)
	}
	trigger, err := ResolveTriggerStop(seq, sel.TargetStopID, sel.StopsBefore)
	if err != nil {
		return TriggerRule{}, err
	}
	cond := Condition{Kind: StopArrival, TripID: sel.TripID, StopID: trigger.StopID}
	desc := describeStopArrival(sel, seq, trigger)
	return NewRule(sel.FeedID, sel.OwnerID, cond, sel.WebhookURL, desc)
}

func compileGeofence(sel Selection) (TriggerRule, error) {
	cond := Condition{Kind: GeofenceCrossing, TripID: sel.TripID, Points: sel.Points}
	desc := describeGeofence(sel)
	return NewRule(sel.FeedID, sel.OwnerID, cond, sel.WebhookURL, desc)
}

// ResolveTriggerStop picks the stop the rule should fire at: the stop
// stopsBefore positions ahead of the target in the trip's stop sequence.
// The offset is capped at the sequence start, so an oversized offset
// resolves to the first stop. Stop sequences are treated as linear; looping
// trips get no special lookback.
func ResolveTriggerStop(seq []timetable.RealtimeStopTime, targetStopID string, stopsBefore int) (timetable.RealtimeStopTime, error) {
	if stopsBefore < 0 {
		return timetable.RealtimeStopTime{}, fmt.Errorf("%w: negative stops-before offset", ErrInvalidSelection)
	}
	target := -1
	for i, st := range seq {
		if st.StopID == targetStopID {
			target = i
			break
		}
	}
	if target < 0 {
		return timetable.RealtimeStopTime{}, fmt.Errorf("%w: stop %q not on trip", ErrInvalidSelection, targetStopID)
	}
	idx := target - stopsBefore
	if idx < 0 {
		idx = 0
	}
	return seq[idx], nil
}

// ConnectingTrip is a trip that serves the boarding station strictly before
// the alighting station.
type ConnectingTrip struct {
	TripID    string
	Headsign  string
	Departure string // at the boarding station
	Arrival   string // at the alighting station
}

// ConnectingTrips intersects two station timetable slices and keeps the
// trips whose boarding departure strictly precedes the alighting arrival.
// This prevents a rule from referencing a trip running the wrong direction.
func ConnectingTrips(boarding, alighting []timetable.RealtimeStopTime) ([]ConnectingTrip, error) {
	arrivals := make(map[string]timetable.RealtimeStopTime, len(alighting))
	for _, st := range alighting {
		if _, ok := arrivals[st.TripID]; !ok {
			arrivals[st.TripID] = st
		}
	}
	var out []ConnectingTrip
	for _, st := range boarding {
		arr, ok := arrivals[st.TripID]
		if !ok {
			continue
		}
		dep, err := MinutesSinceMidnight(st.ScheduledDeparture)
		if err != nil {
			return nil, err
		}
		arrMin, err := MinutesSinceMidnight(arr.ScheduledArrival)
		if err != nil {
			return nil, err
		}
		if dep < arrMin {
			out = append(out, ConnectingTrip{
				TripID:    st.TripID,
				Headsign:  st.Headsign,
				Departure: st.ScheduledDeparture,
				Arrival:   arr.ScheduledArrival,
			})
		}
	}
	return out, nil
}

// MinutesSinceMidnight parses an "HH:MM" or "HH:MM:SS" timetable time.
// GTFS allows hours past 24 for after-midnight service.
func MinutesSinceMidnight(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedSchedule, s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || h < 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedSchedule, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedSchedule, s)
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("%w: %q", ErrMalformedSchedule, s)
		}
	}
	return h*60 + m, nil
}

// stopSequenceForTrip filters a timetable slice down to one trip, ordered by
// sequence index.
func stopSequenceForTrip(stopTimes []timetable.RealtimeStopTime, tripID string) []timetable.RealtimeStopTime {
	var seq []timetable.RealtimeStopTime
	for _, st := range stopTimes {
		if st.TripID == tripID {
			seq = append(seq, st)
		}
	}
	sort.SliceStable(seq, func(i, j int) bool { return seq[i].SequenceIndex < seq[j].SequenceIndex })
	return seq
}

func describeStopArrival(sel Selection, seq []timetable.RealtimeStopTime, trigger timetable.RealtimeStopTime) string {
	targetName := sel.TargetStopID
	for _, st := range seq {
		if st.StopID == sel.TargetStopID && st.StopName != "" {
			targetName = st.StopName
			break
		}
	}
	service := "the service on trip " + sel.TripID
	for _, st := range sel.BoardingStopTimes {
		if st.TripID != sel.TripID {
			continue
		}
		service = fmt.Sprintf("the %s departure", st.ScheduledDeparture)
		if st.Headsign != "" {
			service += fmt.Sprintf(" for %s", st.Headsign)
		}
		if st.StopName != "" {
			service += fmt.Sprintf(" from %s", st.StopName)
		}
		break
	}
	if sel.StopsBefore == 0 {
		return fmt.Sprintf("Notify when %s arrives at %s.", service, targetName)
	}
	plural := "stops"
	if sel.StopsBefore == 1 {
		plural = "stop"
	}
	return fmt.Sprintf("Notify when %s is %d %s before %s.", service, sel.StopsBefore, plural, targetName)
}

func describeGeofence(sel Selection) string {
	areas := "a watched area"
	if len(sel.Points) > 1 {
		areas = fmt.Sprintf("one of %d watched areas", len(sel.Points))
	}
	if sel.TripID != "" {
		return fmt.Sprintf("Notify when the vehicle on trip %s enters %s.", sel.TripID, areas)
	}
	return fmt.Sprintf("Notify when any vehicle on feed %s enters %s.", sel.FeedID, areas)
}
