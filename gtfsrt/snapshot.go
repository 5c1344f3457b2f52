package gtfsrt

import (
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
)

// Snapshot stores one fetch of a feed's realtime data in memory for fast
// lookups during rule evaluation. Snapshots are immutable once built.
type Snapshot struct {
	feedID          string
	headerTimestamp int64

	vehicles []VehiclePosition
	byTrip   map[string]int // trip_id -> index into vehicles

	stopSeq map[string]map[string]uint32 // trip_id -> stop_id -> stop_sequence
}

// NewSnapshot indexes decoded vehicle-position and trip-update feed messages.
// Either message may be nil.
func NewSnapshot(feedID string, vp, tu *gtfsrtpb.FeedMessage) *Snapshot {
	s := &Snapshot{
		feedID:          feedID,
		headerTimestamp: time.Now().Unix(),
		byTrip:          map[string]int{},
		stopSeq:         map[string]map[string]uint32{},
	}
	if vp != nil {
		if vp.Header != nil && vp.Header.Timestamp != nil {
			s.headerTimestamp = int64(*vp.Header.Timestamp)
		}
		for _, e := range vp.Entity {
			v := e.Vehicle
			if v == nil {
				continue
			}
			var pos VehiclePosition
			if v.Vehicle != nil && v.Vehicle.Id != nil {
				pos.VehicleID = *v.Vehicle.Id
			}
			if v.Trip != nil {
				if v.Trip.TripId != nil {
					pos.TripID = *v.Trip.TripId
				}
				if v.Trip.RouteId != nil {
					pos.RouteID = *v.Trip.RouteId
				}
			}
			if v.StopId != nil {
				pos.StopID = *v.StopId
			}
			if v.CurrentStopSequence != nil {
				pos.StopSeq = *v.CurrentStopSequence
				pos.HasStopSeq = true
			}
			if v.CurrentStatus != nil {
				pos.Stopped = *v.CurrentStatus == gtfsrtpb.VehiclePosition_STOPPED_AT
			}
			if v.Position != nil && v.Position.Latitude != nil && v.Position.Longitude != nil {
				pos.HasCoord = true
				pos.Lat = float64(*v.Position.Latitude)
				pos.Lon = float64(*v.Position.Longitude)
			}
			if v.Timestamp != nil {
				pos.Timestamp = int64(*v.Timestamp)
			}
			s.vehicles = append(s.vehicles, pos)
			if pos.TripID != "" {
				s.byTrip[pos.TripID] = len(s.vehicles) - 1
			}
		}
	}
	if tu != nil {
		if tu.Header != nil && tu.Header.Timestamp != nil {
			if ts := int64(*tu.Header.Timestamp); ts > s.headerTimestamp {
				s.headerTimestamp = ts
			}
		}
		for _, e := range tu.Entity {
			u := e.TripUpdate
			if u == nil || u.Trip == nil || u.Trip.TripId == nil {
				continue
			}
			tripID := *u.Trip.TripId
			for _, stu := range u.StopTimeUpdate {
				if stu.StopId == nil || stu.StopSequence == nil {
					continue
				}
				if s.stopSeq[tripID] == nil {
					s.stopSeq[tripID] = map[string]uint32{}
				}
				s.stopSeq[tripID][*stu.StopId] = *stu.StopSequence
			}
		}
	}
	return s
}

// FeedID returns the feed this snapshot was taken from.
func (s *Snapshot) FeedID() string { return s.feedID }

// Timestamp returns the newest feed-header epoch seen across the fetches.
func (s *Snapshot) Timestamp() int64 { return s.headerTimestamp }

// Vehicles returns every vehicle observed in the snapshot.
func (s *Snapshot) Vehicles() []VehiclePosition { return s.vehicles }

// VehicleForTrip returns the vehicle currently serving a trip.
func (s *Snapshot) VehicleForTrip(tripID string) (VehiclePosition, bool) {
	i, ok := s.byTrip[tripID]
	if !ok {
		return VehiclePosition{}, false
	}
	return s.vehicles[i], true
}

// StopReached reports whether the trip's vehicle has reached or passed the
// given stop. When the trip update carries a stop sequence the comparison is
// positional; otherwise only an exact current-stop match counts. A stop the
// trip never reports never matches.
func (s *Snapshot) StopReached(tripID, stopID string) bool {
	v, ok := s.VehicleForTrip(tripID)
	if !ok {
		return false
	}
	if v.StopID == stopID {
		return true
	}
	if seq, ok := s.stopSeq[tripID][stopID]; ok && v.HasStopSeq {
		return v.StopSeq >= seq
	}
	return false
}
