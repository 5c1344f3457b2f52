package gtfsrt

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/gtfsrt-trigger/config"
)

// Client is an HTTP client for fetching GTFS-RT protobuf feeds.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a GTFS-RT client with a bounded per-request timeout.
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

// Fetch fetches and decodes a single GTFS-RT feed from a URL.
// Returns nil if url is empty (allows optional feeds).
func (c *Client) Fetch(ctx context.Context, url string) (*gtfsrtpb.FeedMessage, error) {
	if url == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(b, &fm); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", url, err)
	}
	return &fm, nil
}

// FetchSnapshot fetches the feed's vehicle positions and trip updates and
// indexes them into a Snapshot. Any failed fetch fails the snapshot; the
// caller defers the feed's rules to the next tick.
func (c *Client) FetchSnapshot(ctx context.Context, feed config.FeedConfig) (*Snapshot, error) {
	vp, err := c.Fetch(ctx, feed.VehiclePositionsURL)
	if err != nil {
		return nil, fmt.Errorf("vehicle positions: %w", err)
	}
	tu, err := c.Fetch(ctx, feed.TripUpdatesURL)
	if err != nil {
		return nil, fmt.Errorf("trip updates: %w", err)
	}
	if vp == nil && tu == nil {
		return nil, fmt.Errorf("feed %s has no realtime URLs configured", feed.ID)
	}
	return NewSnapshot(feed.ID, vp, tu), nil
}
