package rules

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestConditionValidate(t *testing.T) {
	tests := []struct {
		name    string
		cond    Condition
		wantErr bool
	}{
		{
			name: "valid stop arrival",
			cond: Condition{Kind: StopArrival, TripID: "T1", StopID: "S1"},
		},
		{
			name:    "stop arrival without trip",
			cond:    Condition{Kind: StopArrival, StopID: "S1"},
			wantErr: true,
		},
		{
			name:    "stop arrival without stop",
			cond:    Condition{Kind: StopArrival, TripID: "T1"},
			wantErr: true,
		},
		{
			name:    "stop arrival with stray points",
			cond:    Condition{Kind: StopArrival, TripID: "T1", StopID: "S1", Points: []GeoPoint{{RadiusMeters: 1}}},
			wantErr: true,
		},
		{
			name: "valid geofence",
			cond: Condition{Kind: GeofenceCrossing, Points: []GeoPoint{{Lat: 26.55, Lon: 127.97, RadiusMeters: 20}}},
		},
		{
			name: "geofence pinned to a trip",
			cond: Condition{Kind: GeofenceCrossing, TripID: "T1", Points: []GeoPoint{{Lat: 26.55, Lon: 127.97, RadiusMeters: 20}}},
		},
		{
			name:    "geofence without points",
			cond:    Condition{Kind: GeofenceCrossing},
			wantErr: true,
		},
		{
			name:    "geofence with negative radius",
			cond:    Condition{Kind: GeofenceCrossing, Points: []GeoPoint{{RadiusMeters: -5}}},
			wantErr: true,
		},
		{
			name:    "geofence longitude out of range",
			cond:    Condition{Kind: GeofenceCrossing, Points: []GeoPoint{{Lon: 181, RadiusMeters: 5}}},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			cond:    Condition{Kind: "something_else"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cond.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSelection) {
					t.Errorf("expected ErrInvalidSelection, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() failed: %v", err)
			}
		})
	}
}

func TestNewRule(t *testing.T) {
	cond := Condition{Kind: StopArrival, TripID: "T1", StopID: "S1"}

	r, err := NewRule("feed-1", "rider@example.com", cond, "https://hooks.example.com/n", "desc")
	if err != nil {
		t.Fatalf("NewRule() failed: %v", err)
	}
	if r.ID == "" {
		t.Error("expected a generated id")
	}
	if r.CreatedAt.IsZero() {
		t.Error("expected a creation timestamp")
	}

	other, err := NewRule("feed-1", "rider@example.com", cond, "", "desc")
	if err != nil {
		t.Fatalf("NewRule() failed: %v", err)
	}
	if other.ID == r.ID {
		t.Error("two rules with identical selections must get distinct ids")
	}

	if _, err := NewRule("", "rider@example.com", cond, "", ""); !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("missing feed: expected ErrInvalidSelection, got %v", err)
	}
	if _, err := NewRule("feed-1", "", cond, "", ""); !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("missing owner: expected ErrInvalidSelection, got %v", err)
	}
}

func TestConditionJSONRoundtrip(t *testing.T) {
	cond := Condition{
		Kind:   GeofenceCrossing,
		TripID: "T1",
		Points: []GeoPoint{{Lat: 26.55, Lon: 127.97, RadiusMeters: 20}},
	}
	b, err := json.Marshal(cond)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Condition
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != cond.Kind || got.TripID != cond.TripID || len(got.Points) != 1 {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
}
