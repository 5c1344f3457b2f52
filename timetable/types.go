package timetable

// RealtimeStopTime is one stop-time record of a timetable slice, as returned
// by the feed provider's timetable API. Ordering by SequenceIndex defines the
// stop order used for "N stops before" resolution.
type RealtimeStopTime struct {
	TripID             string `json:"trip_id"`
	StopID             string `json:"stop_id"`
	StopName           string `json:"stop_name"`
	SequenceIndex      int    `json:"stop_sequence"`
	ScheduledArrival   string `json:"arrival_time"`   // "HH:MM" or "HH:MM:SS"
	ScheduledDeparture string `json:"departure_time"` // same format
	Headsign           string `json:"trip_headsign,omitempty"`
	CurrentStatus      string `json:"current_status,omitempty"`
}
