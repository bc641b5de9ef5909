// Package syncer drains the offline queue against the remote backend.
// Drains are triggered by connectivity-regained events, a periodic timer
// and manual requests; overlapping triggers coalesce into one drain.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/apex/log"

	"billboardwatch/backend"
	"billboardwatch/models"
	"billboardwatch/queue"
)

// OutcomeFunc receives report-outcome events when a backend
// acknowledgement carried a status change.
type OutcomeFunc func(models.OutcomeEvent)

// Options tune the drain behaviour.
type Options struct {
	Interval      time.Duration // periodic drain interval
	BackoffBase   time.Duration // base delay before the first retry
	BackoffMax    time.Duration // cap on the exponential backoff
	SubmitTimeout time.Duration // per-call backend timeout
}

// Engine owns the queue drain loop.
type Engine struct {
	queue     *queue.Store
	backend   backend.Client
	opts      Options
	onOutcome OutcomeFunc

	// drainMu guarantees at most one drain runs at a time even when
	// DrainOnce is called while the loop is active.
	drainMu sync.Mutex
	trigger chan struct{}

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	now func() time.Time
}

// NewEngine creates a sync engine. onOutcome may be nil.
func NewEngine(q *queue.Store, b backend.Client, opts Options, onOutcome OutcomeFunc) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 30 * time.Second
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 30 * time.Minute
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 30 * time.Second
	}
	return &Engine{
		queue:     q,
		backend:   b,
		opts:      opts,
		onOutcome: onOutcome,
		trigger:   make(chan struct{}, 1),
		stopChan:  make(chan struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the drain loop.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.loop()
	log.Infof("sync engine started (interval %s)", e.opts.Interval)
}

// Stop cancels the loop. A drain in progress finishes its current entry
// and leaves the rest untouched.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()
	log.Info("sync engine stopped")
}

// Trigger requests a drain. Triggers arriving while one is already
// pending coalesce; Trigger never blocks.
func (e *Engine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

func (e *Engine) loop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-e.stopChan
		cancel()
	}()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
		case <-e.trigger:
		}
		if err := e.DrainOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("drain failed: %v", err)
		}
	}
}

// DrainOnce walks the pending entries oldest first and submits each
// eligible one. Cancellation is honored at entry boundaries, so a
// cancelled drain never leaves a half-updated entry behind.
func (e *Engine) DrainOnce(ctx context.Context) error {
	e.drainMu.Lock()
	defer e.drainMu.Unlock()

	entries, err := e.queue.ListPending()
	if err != nil {
		return err
	}
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := &entries[i]
		if !e.eligible(entry) {
			continue
		}
		e.submitEntry(ctx, entry)
	}
	return nil
}

// eligible applies the exponential backoff: an entry with n prior
// attempts waits base * 2^n, capped, after its last attempt.
func (e *Engine) eligible(entry *models.QueueEntry) bool {
	if entry.LastAttemptAt == nil || entry.RetryCount == 0 {
		return true
	}
	delay := e.opts.BackoffBase << entry.RetryCount
	if delay > e.opts.BackoffMax || delay <= 0 {
		delay = e.opts.BackoffMax
	}
	return !e.now().Before(entry.LastAttemptAt.Add(delay))
}

func (e *Engine) submitEntry(ctx context.Context, entry *models.QueueEntry) {
	id := entry.Report.ID
	if err := e.queue.MarkSyncing(id); err != nil {
		log.Errorf("cannot mark %s syncing: %v", id, err)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, e.opts.SubmitTimeout)
	ack, err := e.backend.SubmitReport(callCtx, &entry.Report)
	cancel()

	switch {
	case err == nil:
		e.acknowledge(entry, ack)
	case errors.Is(err, backend.ErrPermanent):
		log.Warnf("report %s rejected by backend: %v", id, err)
		if rerr := e.queue.RecordAttempt(id, queue.AttemptPermanent); rerr != nil {
			log.Errorf("recording permanent failure for %s: %v", id, rerr)
		}
	default:
		// Timeouts, connectivity loss and 5xx all retry with backoff.
		log.Warnf("report %s submission failed transiently: %v", id, err)
		if rerr := e.queue.RecordAttempt(id, queue.AttemptTransient); rerr != nil {
			log.Errorf("recording attempt for %s: %v", id, rerr)
		}
	}
}

func (e *Engine) acknowledge(entry *models.QueueEntry, ack backend.Ack) {
	id := entry.Report.ID
	if err := e.queue.MarkSynced(id); err != nil {
		log.Errorf("cannot mark %s synced: %v", id, err)
		return
	}

	if ack.Status == entry.Report.Status {
		return
	}
	// The client never advances report state on its own; it only follows
	// transitions the backend acknowledged. An out-of-order ack is left
	// for a later reconciliation.
	if err := models.ApplyTransition(entry.Report.Status, ack.Status); err != nil {
		log.Warnf("ignoring ack for %s: %v", id, err)
		return
	}
	if e.onOutcome != nil {
		e.onOutcome(models.OutcomeEvent{
			ReportID:   id,
			OldStatus:  entry.Report.Status,
			NewStatus:  ack.Status,
			Confidence: entry.Report.OverallConfidence,
			Type:       entry.Report.Type,
			OccurredAt: e.now(),
		})
	}
}
