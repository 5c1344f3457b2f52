package gtfsrttrigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/theoremus-urban-solutions/gtfsrt-trigger/config"
	"github.com/theoremus-urban-solutions/gtfsrt-trigger/rules"
	"github.com/theoremus-urban-solutions/gtfsrt-trigger/store"
)

// Dispatcher delivers exactly one notification per satisfied rule. The dedup
// claim is written before delivery; of any number of concurrent evaluations
// of the same rule, only the one that wins the claim delivers.
type Dispatcher struct {
	store   *store.Store
	retirer *Retirer

	httpClient *http.Client
	defaultURL string
	attempts   int
}

// NewDispatcher wires the dispatcher.
func NewDispatcher(st *store.Store, retirer *Retirer, engineCfg config.EngineConfig, notifierCfg config.NotifierConfig) *Dispatcher {
	return &Dispatcher{
		store:      st,
		retirer:    retirer,
		httpClient: &http.Client{Timeout: time.Duration(engineCfg.WebhookTimeoutMS) * time.Millisecond},
		defaultURL: notifierCfg.DefaultWebhookURL,
		attempts:   engineCfg.DeliveryAttempts,
	}
}

type vehicleInfo struct {
	TripID    string   `json:"trip_id,omitempty"`
	StopID    string   `json:"stop_id,omitempty"`
	VehicleID string   `json:"vehicle_id,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
}

type notificationPayload struct {
	RuleID      string            `json:"id"`
	OwnerID     string            `json:"owner_id"`
	Description string            `json:"description"`
	Condition   rules.Condition   `json:"condition"`
	Vehicle     vehicleInfo       `json:"vehicle"`
	ObservedAt  int64             `json:"observed_at,omitempty"`
	FiredAt     string            `json:"fired_at"`
	Params      map[string]string `json:"params,omitempty"`
}

// Dispatch claims the rule in the dedup log and, on winning the claim,
// performs the webhook delivery and schedules retirement. Losing the claim
// means another evaluation already handled the rule. A claim failure leaves
// the rule pending for the next tick.
func (d *Dispatcher) Dispatch(ctx context.Context, r rules.TriggerRule, m Match) {
	firedAt := time.Now().UTC()
	claimed, err := d.store.TryClaim(ctx, r.ID, r.FeedID, r.OwnerID, firedAt)
	if err != nil {
		log.Printf("rule %s: dedup claim failed: %v", r.ID, err)
		return
	}
	if !claimed {
		metricClaimsRejected.Inc()
		return
	}

	// Retirement is independent of delivery outcome: the claim already
	// guarantees at-most-once delivery, and a transit event that occurred
	// cannot be un-occurred.
	d.retirer.Enqueue(r.ID)

	if err := d.deliver(ctx, r, m, firedAt); err != nil {
		metricDeliveries.WithLabelValues("failed").Inc()
		log.Printf("rule %s: delivery failed after %d attempt(s): %v", r.ID, d.attempts, err)
		return
	}
	metricDeliveries.WithLabelValues("ok").Inc()
	log.Printf("rule %s: notified owner %s", r.ID, r.OwnerID)
}

func (d *Dispatcher) deliver(ctx context.Context, r rules.TriggerRule, m Match, firedAt time.Time) error {
	target := r.WebhookURL
	if target == "" {
		target = d.defaultURL
	}
	if target == "" {
		return fmt.Errorf("no webhook URL and no default sink configured")
	}

	payload := notificationPayload{
		RuleID:      r.ID,
		OwnerID:     r.OwnerID,
		Description: r.Description,
		Condition:   r.Condition,
		Vehicle:     vehicleInfo{TripID: m.TripID, StopID: m.StopID, VehicleID: m.VehicleID},
		ObservedAt:  m.ObservedAt,
		FiredAt:     firedAt.Format(time.RFC3339),
	}
	if m.HasCoord {
		lat, lon := m.Lat, m.Lon
		payload.Vehicle.Lat = &lat
		payload.Vehicle.Lon = &lon
	}
	// Query parameters on the webhook URL are folded into the payload so
	// sinks can route on them.
	if u, err := url.Parse(target); err == nil && len(u.Query()) > 0 {
		payload.Params = map[string]string{}
		for k, vs := range u.Query() {
			if len(vs) > 0 {
				payload.Params[k] = vs[0]
			}
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return retryWithBackoff(ctx, d.attempts, time.Second, 30*time.Second, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := d.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("HTTP %d from %s", resp.StatusCode, target)
		}
		return nil
	})
}

// retryWithBackoff runs fn up to attempts times with doubling sleeps.
func retryWithBackoff(ctx context.Context, attempts int, initial, max time.Duration, fn func() error) error {
	if attempts <= 1 {
		return fn()
	}
	d := initial
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
			if d < max {
				d *= 2
				if d > max {
					d = max
				}
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
