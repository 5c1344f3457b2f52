package rules

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConditionKind discriminates the condition variants.
type ConditionKind string

const (
	// StopArrival fires when a trip reaches or passes a stop.
	StopArrival ConditionKind = "stop_arrival"
	// GeofenceCrossing fires when a vehicle enters one of a set of circles.
	GeofenceCrossing ConditionKind = "geofence_crossing"
)

// GeoPoint is one geofence circle. A zero radius matches only exact
// coincidence.
type GeoPoint struct {
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	RadiusMeters float64 `json:"radius_meters"`
}

// Condition is the decidable predicate a rule evaluates against a realtime
// snapshot. Kind selects the variant; the other fields are variant payload.
type Condition struct {
	Kind   ConditionKind `json:"kind"`
	TripID string        `json:"trip_id,omitempty"` // optional for geofence rules
	StopID string        `json:"stop_id,omitempty"`
	Points []GeoPoint    `json:"points,omitempty"`
}

// Validate checks the variant payload for internal consistency.
func (c Condition) Validate() error {
	switch c.Kind {
	case StopArrival:
		if c.TripID == "" || c.StopID == "" {
			return fmt.Errorf("%w: stop arrival requires trip_id and stop_id", ErrInvalidSelection)
		}
		if len(c.Points) != 0 {
			return fmt.Errorf("%w: stop arrival carries no geofence points", ErrInvalidSelection)
		}
	case GeofenceCrossing:
		if len(c.Points) == 0 {
			return fmt.Errorf("%w: geofence crossing requires at least one point", ErrInvalidSelection)
		}
		for _, p := range c.Points {
			if p.RadiusMeters < 0 {
				return fmt.Errorf("%w: negative geofence radius", ErrInvalidSelection)
			}
			if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
				return fmt.Errorf("%w: geofence point out of range", ErrInvalidSelection)
			}
		}
	default:
		return fmt.Errorf("%w: unknown condition kind %q", ErrInvalidSelection, c.Kind)
	}
	return nil
}

// TriggerRule is one stored notification rule. Rules are immutable after
// creation; the only later mutation is deletion by the retirement worker.
type TriggerRule struct {
	ID          string    `json:"id"`
	FeedID      string    `json:"feed_id"`
	OwnerID     string    `json:"owner_id"`
	Condition   Condition `json:"condition"`
	WebhookURL  string    `json:"webhook_url,omitempty"` // empty means the default sink
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewRule assembles a rule with a fresh globally unique identifier. The
// (feed, owner) pair is only a lookup index, never the rule's identity.
func NewRule(feedID, ownerID string, cond Condition, webhookURL, description string) (TriggerRule, error) {
	if feedID == "" {
		return TriggerRule{}, fmt.Errorf("%w: missing feed id", ErrInvalidSelection)
	}
	if ownerID == "" {
		return TriggerRule{}, fmt.Errorf("%w: missing owner id", ErrInvalidSelection)
	}
	if err := cond.Validate(); err != nil {
		return TriggerRule{}, err
	}
	return TriggerRule{
		ID:          uuid.NewString(),
		FeedID:      feedID,
		OwnerID:     ownerID,
		Condition:   cond,
		WebhookURL:  webhookURL,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
