package gtfsrttrigger

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/gtfsrt-trigger/store"
)

// Retirer removes fired rules from the rule store so they are not evaluated
// on later ticks. It runs decoupled from the dispatcher: a delivery failure
// never blocks cleanup, and a retirement failure never blocks delivery. A
// rule that fails to retire stays harmless because the dedup log already
// blocks re-dispatch.
type Retirer struct {
	store *store.Store
	queue chan string
	done  chan struct{}

	mu      sync.Mutex
	stopped bool
}

// NewRetirer creates a retirement worker with a bounded queue.
func NewRetirer(st *store.Store, buffer int) *Retirer {
	if buffer <= 0 {
		buffer = 256
	}
	return &Retirer{
		store: st,
		queue: make(chan string, buffer),
		done:  make(chan struct{}),
	}
}

// Start launches the worker goroutine. It drains the queue until Stop.
func (r *Retirer) Start() {
	go func() {
		defer close(r.done)
		for id := range r.queue {
			r.retire(id)
		}
	}()
}

// Stop closes the queue and waits for the worker to drain it. Safe to call
// more than once.
func (r *Retirer) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()
	<-r.done
}

// Enqueue schedules a fired rule for deletion. An enqueue that races
// shutdown is dropped instead of panicking on the closed queue; the dedup
// log already keeps the rule inert.
func (r *Retirer) Enqueue(ruleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		log.Printf("rule %s: retirement skipped during shutdown, dedup log keeps it inert", ruleID)
		return
	}
	r.queue <- ruleID
}

// retire deletes with a small retry budget. Deleting an already-deleted
// rule is a no-op, so retries are always safe.
func (r *Retirer) retire(ruleID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := retryWithBackoff(ctx, 3, 100*time.Millisecond, time.Second, func() error {
		return r.store.DeleteRule(ctx, ruleID)
	})
	if err != nil {
		log.Printf("rule %s: retirement failed, will stay blocked by dedup log: %v", ruleID, err)
	}
}
