package gtfsrt

import (
	"testing"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

func vehicleFeed(entities ...*gtfsrtpb.FeedEntity) *gtfsrtpb.FeedMessage {
	return &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1700000000),
		},
		Entity: entities,
	}
}

func vehicleEntity(id, tripID, stopID string, stopSeq uint32, lat, lon float32) *gtfsrtpb.FeedEntity {
	e := &gtfsrtpb.FeedEntity{
		Id: proto.String(id),
		Vehicle: &gtfsrtpb.VehiclePosition{
			Vehicle: &gtfsrtpb.VehicleDescriptor{Id: proto.String(id)},
			Trip:    &gtfsrtpb.TripDescriptor{TripId: proto.String(tripID)},
			Position: &gtfsrtpb.Position{
				Latitude:  proto.Float32(lat),
				Longitude: proto.Float32(lon),
			},
		},
	}
	if stopID != "" {
		e.Vehicle.StopId = proto.String(stopID)
	}
	if stopSeq > 0 {
		e.Vehicle.CurrentStopSequence = proto.Uint32(stopSeq)
	}
	return e
}

func tripUpdateFeed(tripID string, stops map[string]uint32) *gtfsrtpb.FeedMessage {
	tu := &gtfsrtpb.TripUpdate{
		Trip: &gtfsrtpb.TripDescriptor{TripId: proto.String(tripID)},
	}
	for stopID, seq := range stops {
		tu.StopTimeUpdate = append(tu.StopTimeUpdate, &gtfsrtpb.TripUpdate_StopTimeUpdate{
			StopId:       proto.String(stopID),
			StopSequence: proto.Uint32(seq),
		})
	}
	return &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1700000050),
		},
		Entity: []*gtfsrtpb.FeedEntity{{Id: proto.String("tu-1"), TripUpdate: tu}},
	}
}

func TestSnapshotIndexesVehicles(t *testing.T) {
	vp := vehicleFeed(
		vehicleEntity("V1", "T1", "S3", 3, 26.55, 127.97),
		vehicleEntity("V2", "T2", "", 0, 26.60, 127.90),
	)
	snap := NewSnapshot("feed-1", vp, nil)

	if snap.FeedID() != "feed-1" {
		t.Errorf("expected feed-1, got %s", snap.FeedID())
	}
	if len(snap.Vehicles()) != 2 {
		t.Fatalf("expected 2 vehicles, got %d", len(snap.Vehicles()))
	}

	v, ok := snap.VehicleForTrip("T1")
	if !ok {
		t.Fatal("expected a vehicle on T1")
	}
	if v.VehicleID != "V1" || v.StopID != "S3" || v.StopSeq != 3 {
		t.Errorf("unexpected vehicle: %+v", v)
	}
	if !v.HasCoord {
		t.Error("expected coordinates on V1")
	}

	if _, ok := snap.VehicleForTrip("T9"); ok {
		t.Error("unexpected vehicle on unknown trip")
	}
}

func TestSnapshotTimestampPrefersNewestHeader(t *testing.T) {
	vp := vehicleFeed(vehicleEntity("V1", "T1", "S1", 1, 26.55, 127.97))
	tu := tripUpdateFeed("T1", map[string]uint32{"S1": 1})

	snap := NewSnapshot("feed-1", vp, tu)
	if snap.Timestamp() != 1700000050 {
		t.Errorf("expected newest header timestamp, got %d", snap.Timestamp())
	}
}

func TestStopReached(t *testing.T) {
	vp := vehicleFeed(vehicleEntity("V1", "T1", "S3", 3, 26.55, 127.97))
	tu := tripUpdateFeed("T1", map[string]uint32{"S1": 1, "S2": 2, "S3": 3, "S4": 4})
	snap := NewSnapshot("feed-1", vp, tu)

	tests := []struct {
		name   string
		tripID string
		stopID string
		want   bool
	}{
		{name: "exact current stop", tripID: "T1", stopID: "S3", want: true},
		{name: "already passed stop", tripID: "T1", stopID: "S2", want: true},
		{name: "upcoming stop", tripID: "T1", stopID: "S4", want: false},
		{name: "stop not served this cycle", tripID: "T1", stopID: "S9", want: false},
		{name: "unknown trip", tripID: "T9", stopID: "S3", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snap.StopReached(tt.tripID, tt.stopID); got != tt.want {
				t.Errorf("StopReached(%s, %s) = %v, want %v", tt.tripID, tt.stopID, got, tt.want)
			}
		})
	}
}

func TestStopReachedAtSequenceZero(t *testing.T) {
	// current_stop_sequence = 0 is a valid first-stop value, distinct from
	// the field being absent.
	e := vehicleEntity("V1", "T1", "", 0, 26.55, 127.97)
	e.Vehicle.CurrentStopSequence = proto.Uint32(0)
	snap := NewSnapshot("feed-1", vehicleFeed(e), tripUpdateFeed("T1", map[string]uint32{"S0": 0, "S1": 1}))

	if !snap.StopReached("T1", "S0") {
		t.Error("the first stop (sequence 0) should count as reached")
	}
	if snap.StopReached("T1", "S1") {
		t.Error("a later stop must not count as reached")
	}

	v, ok := snap.VehicleForTrip("T1")
	if !ok || !v.HasStopSeq || v.StopSeq != 0 {
		t.Errorf("expected a present zero stop sequence, got %+v", v)
	}
}

func TestStopReachedWithoutTripUpdate(t *testing.T) {
	// No trip-update sequence: only the exact current stop counts.
	vp := vehicleFeed(vehicleEntity("V1", "T1", "S3", 3, 26.55, 127.97))
	snap := NewSnapshot("feed-1", vp, nil)

	if !snap.StopReached("T1", "S3") {
		t.Error("exact current stop should match")
	}
	if snap.StopReached("T1", "S2") {
		t.Error("positional matching needs a trip update sequence")
	}
}

func TestSnapshotSkipsMalformedEntities(t *testing.T) {
	vp := vehicleFeed(
		&gtfsrtpb.FeedEntity{Id: proto.String("empty")},
		vehicleEntity("V1", "T1", "S1", 1, 26.55, 127.97),
	)
	snap := NewSnapshot("feed-1", vp, nil)
	if len(snap.Vehicles()) != 1 {
		t.Errorf("expected the malformed entity skipped, got %d vehicles", len(snap.Vehicles()))
	}
}

func TestSnapshotNilFeeds(t *testing.T) {
	snap := NewSnapshot("feed-1", nil, nil)
	if len(snap.Vehicles()) != 0 {
		t.Errorf("expected no vehicles, got %d", len(snap.Vehicles()))
	}
	if snap.StopReached("T1", "S1") {
		t.Error("empty snapshot must not match anything")
	}
}
