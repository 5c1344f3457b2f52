package timetable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/gtfsrt-trigger/config"
)

func TestForStops(t *testing.T) {
	var gotGTFSID string
	var gotOpts fetchOptions
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGTFSID = r.URL.Query().Get("gtfs_id")
		if err := json.Unmarshal([]byte(r.URL.Query().Get("options")), &gotOpts); err != nil {
			t.Errorf("bad options parameter: %v", err)
		}
		_ = json.NewEncoder(w).Encode(timetableResponse{StopTimes: []RealtimeStopTime{
			{TripID: "T1", StopID: "S1", StopName: "Nago", SequenceIndex: 0, ScheduledDeparture: "10:00"},
			{TripID: "T2", StopID: "S1", StopName: "Nago", SequenceIndex: 3, ScheduledDeparture: "10:30"},
		}})
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	feed := config.FeedConfig{ID: "feed-1", TimetableURL: srv.URL}
	got, err := c.ForStops(context.Background(), feed, []string{"S1"}, "20260831")
	if err != nil {
		t.Fatalf("ForStops() failed: %v", err)
	}
	if gotGTFSID != "feed-1" {
		t.Errorf("expected gtfs_id=feed-1, got %q", gotGTFSID)
	}
	if len(gotOpts.StopIDs) != 1 || gotOpts.StopIDs[0] != "S1" || gotOpts.Date != "20260831" {
		t.Errorf("unexpected options: %+v", gotOpts)
	}
	if len(got) != 2 || got[0].TripID != "T1" || got[1].ScheduledDeparture != "10:30" {
		t.Errorf("unexpected stop times: %+v", got)
	}
}

func TestForTrips(t *testing.T) {
	var gotOpts fetchOptions
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.Unmarshal([]byte(r.URL.Query().Get("options")), &gotOpts); err != nil {
			t.Errorf("bad options parameter: %v", err)
		}
		_ = json.NewEncoder(w).Encode(timetableResponse{StopTimes: []RealtimeStopTime{
			{TripID: "T1", StopID: "S1", SequenceIndex: 0},
			{TripID: "T1", StopID: "S2", SequenceIndex: 1},
		}})
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	feed := config.FeedConfig{ID: "feed-1", TimetableURL: srv.URL}
	got, err := c.ForTrips(context.Background(), feed, []string{"T1"}, "20260831")
	if err != nil {
		t.Fatalf("ForTrips() failed: %v", err)
	}
	if len(gotOpts.TripIDs) != 1 || gotOpts.TripIDs[0] != "T1" {
		t.Errorf("unexpected options: %+v", gotOpts)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 stop times, got %d", len(got))
	}
}

func TestFetchErrors(t *testing.T) {
	c := NewClient(time.Second)
	ctx := context.Background()

	if _, err := c.ForStops(ctx, config.FeedConfig{ID: "feed-1"}, []string{"S1"}, ""); err == nil {
		t.Error("expected an error when no timetable URL is configured")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	feed := config.FeedConfig{ID: "feed-1", TimetableURL: srv.URL}
	if _, err := c.ForStops(ctx, feed, []string{"S1"}, ""); err == nil {
		t.Error("expected an error on HTTP 503")
	}
}
