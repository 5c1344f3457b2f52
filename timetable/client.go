package timetable

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/theoremus-urban-solutions/gtfsrt-trigger/config"
)

// Client fetches static timetable slices from the feed provider's JSON API.
// The provider exposes one endpoint per feed returning stop_times filtered by
// stop IDs or trip IDs for a service date.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a timetable client with a bounded per-request timeout.
func NewClient(timeout time.Duration) *Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &Client{httpClient: &http.Client{Timeout: timeout, Transport: tr}}
}

type fetchOptions struct {
	StopIDs []string `json:"stop_ids,omitempty"`
	TripIDs []string `json:"trip_ids,omitempty"`
	Date    string   `json:"date,omitempty"` // YYYYMMDD
}

type timetableResponse struct {
	StopTimes []RealtimeStopTime `json:"stop_times"`
}

// ForStops returns the timetable slice serving the given stops on a date.
func (c *Client) ForStops(ctx context.Context, feed config.FeedConfig, stopIDs []string, date string) ([]RealtimeStopTime, error) {
	return c.fetch(ctx, feed, fetchOptions{StopIDs: stopIDs, Date: date})
}

// ForTrips returns the full stop sequences of the given trips on a date.
func (c *Client) ForTrips(ctx context.Context, feed config.FeedConfig, tripIDs []string, date string) ([]RealtimeStopTime, error) {
	return c.fetch(ctx, feed, fetchOptions{TripIDs: tripIDs, Date: date})
}

func (c *Client) fetch(ctx context.Context, feed config.FeedConfig, opts fetchOptions) ([]RealtimeStopTime, error) {
	if feed.TimetableURL == "" {
		return nil, fmt.Errorf("feed %s has no timetable URL configured", feed.ID)
	}
	optJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("gtfs_id", feed.ID)
	q.Set("options", string(optJSON))
	reqURL := feed.TimetableURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", feed.TimetableURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, feed.TimetableURL)
	}

	var body timetableResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse timetable from %s: %w", feed.TimetableURL, err)
	}
	return body.StopTimes, nil
}
