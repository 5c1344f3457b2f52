package gtfsrttrigger

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theoremus-urban-solutions/gtfsrt-trigger/config"
	"github.com/theoremus-urban-solutions/gtfsrt-trigger/gtfsrt"
	"github.com/theoremus-urban-solutions/gtfsrt-trigger/rules"
	"github.com/theoremus-urban-solutions/gtfsrt-trigger/store"
)

// SnapshotSource fetches one realtime snapshot for a feed.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context, feed config.FeedConfig) (*gtfsrt.Snapshot, error)
}

// Match carries the vehicle observation that satisfied a rule.
type Match struct {
	TripID     string
	StopID     string
	VehicleID  string
	HasCoord   bool
	Lat        float64
	Lon        float64
	ObservedAt int64
}

// Engine evaluates pending rules against realtime snapshots once per tick.
// Independent feeds are evaluated in parallel; they share no mutable state
// except the dedup log, so overlapping ticks are safe.
type Engine struct {
	store      *store.Store
	feeds      SnapshotSource
	dispatcher *Dispatcher

	fetchTimeout time.Duration
	lastTick     atomic.Int64
}

// NewEngine wires the matching engine.
func NewEngine(st *store.Store, feeds SnapshotSource, d *Dispatcher, cfg config.EngineConfig) *Engine {
	return &Engine{
		store:        st,
		feeds:        feeds,
		dispatcher:   d,
		fetchTimeout: time.Duration(cfg.FetchTimeoutMS) * time.Millisecond,
	}
}

// LastTickEpoch returns when the last tick started, 0 before the first.
func (e *Engine) LastTickEpoch() int64 { return e.lastTick.Load() }

// Tick runs one evaluation pass: load pending rules, fetch one snapshot per
// distinct feed, evaluate, dispatch. Per-feed and per-rule failures are
// logged and isolated; a tick never aborts because one rule misbehaves.
func (e *Engine) Tick(ctx context.Context) error {
	metricTicks.Inc()
	e.lastTick.Store(time.Now().Unix())

	pending, err := e.store.ListPending(ctx, "")
	if err != nil {
		log.Printf("tick: listing pending rules: %v", err)
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	byFeed := map[string][]rules.TriggerRule{}
	for _, r := range pending {
		byFeed[r.FeedID] = append(byFeed[r.FeedID], r)
	}

	// One goroutine per feed: a slow or failing upstream only stalls its
	// own rules.
	var wg sync.WaitGroup
	for feedID, feedRules := range byFeed {
		feedCfg, ok := config.FeedByID(feedID)
		if !ok {
			log.Printf("tick: %d rule(s) reference unknown feed %q, skipping", len(feedRules), feedID)
			continue
		}
		wg.Add(1)
		go func(fc config.FeedConfig, rs []rules.TriggerRule) {
			defer wg.Done()
			e.evaluateFeed(ctx, fc, rs)
		}(feedCfg, feedRules)
	}
	wg.Wait()
	return nil
}

func (e *Engine) evaluateFeed(ctx context.Context, feedCfg config.FeedConfig, feedRules []rules.TriggerRule) {
	fctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()
	snap, err := e.feeds.FetchSnapshot(fctx, feedCfg)
	if err != nil {
		// Upstream unavailable: defer this feed's rules to the next tick.
		metricFeedFetchFailures.WithLabelValues(feedCfg.ID).Inc()
		log.Printf("feed %s: snapshot fetch failed, deferring %d rule(s): %v", feedCfg.ID, len(feedRules), err)
		return
	}
	for _, r := range feedRules {
		metricRulesEvaluated.Inc()
		m, ok := EvaluateRule(r, snap)
		if !ok {
			continue
		}
		metricMatches.WithLabelValues(string(r.Condition.Kind)).Inc()
		e.dispatcher.Dispatch(ctx, r, m)
	}
}

// EvaluateRule decides whether a snapshot satisfies a rule's condition.
// No fuzzy matching: a rule referencing a stop the trip does not serve this
// cycle simply does not match.
func EvaluateRule(r rules.TriggerRule, snap *gtfsrt.Snapshot) (Match, bool) {
	switch r.Condition.Kind {
	case rules.StopArrival:
		if !snap.StopReached(r.Condition.TripID, r.Condition.StopID) {
			return Match{}, false
		}
		v, _ := snap.VehicleForTrip(r.Condition.TripID)
		return matchFromVehicle(v, r.Condition.StopID, snap.Timestamp()), true

	case rules.GeofenceCrossing:
		if r.Condition.TripID != "" {
			v, ok := snap.VehicleForTrip(r.Condition.TripID)
			if !ok || !v.HasCoord || !withinAnyRadius(v.Lat, v.Lon, r.Condition.Points) {
				return Match{}, false
			}
			return matchFromVehicle(v, v.StopID, snap.Timestamp()), true
		}
		// No trip pinned: any vehicle on the feed may satisfy the rule.
		for _, v := range snap.Vehicles() {
			if v.HasCoord && withinAnyRadius(v.Lat, v.Lon, r.Condition.Points) {
				return matchFromVehicle(v, v.StopID, snap.Timestamp()), true
			}
		}
		return Match{}, false
	}
	return Match{}, false
}

func matchFromVehicle(v gtfsrt.VehiclePosition, stopID string, observedAt int64) Match {
	return Match{
		TripID:     v.TripID,
		StopID:     stopID,
		VehicleID:  v.VehicleID,
		HasCoord:   v.HasCoord,
		Lat:        v.Lat,
		Lon:        v.Lon,
		ObservedAt: observedAt,
	}
}
