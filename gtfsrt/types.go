package gtfsrt

// VehiclePosition is one observed vehicle in a realtime snapshot.
type VehiclePosition struct {
	VehicleID  string
	TripID     string
	RouteID    string
	StopID     string // stop the vehicle is at, or approaching when in transit
	StopSeq    uint32 // current_stop_sequence; 0 is a valid value
	HasStopSeq bool   // the feed carried current_stop_sequence
	Stopped    bool   // current_status == STOPPED_AT
	HasCoord   bool
	Lat        float64
	Lon        float64
	Timestamp  int64
}
