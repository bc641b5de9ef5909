// Package queue is the durable offline queue of reports awaiting
// synchronization. One record per report id, FIFO by creation time,
// surviving process restarts through the key-value store.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/apex/log"

	"billboardwatch/models"
	"billboardwatch/storage"
)

const keyPrefix = "queue/"

var (
	// ErrNotFound is returned for operations on unknown report ids.
	ErrNotFound = errors.New("queue entry not found")
	// ErrNotFailed is returned when a manual retry targets an entry that
	// is not in the failed state.
	ErrNotFailed = errors.New("queue entry is not failed")
)

// AttemptOutcome classifies a finished sync attempt.
type AttemptOutcome int

const (
	// AttemptTransient means the attempt may be retried after backoff.
	AttemptTransient AttemptOutcome = iota
	// AttemptPermanent means the backend rejected the report for good.
	AttemptPermanent
)

// Store is the offline queue. All mutating operations serialize through
// a single lock so an enqueue from a capture never races the sync
// engine's bookkeeping writes on the same record.
type Store struct {
	mu         sync.Mutex
	kv         storage.Store
	maxRetries uint32
}

// NewStore creates a queue over kv. maxRetries caps automatic retrying
// before an entry is parked as failed.
func NewStore(kv storage.Store, maxRetries int) *Store {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Store{kv: kv, maxRetries: uint32(maxRetries)}
}

// Enqueue inserts the report, or replaces the stored payload when the id
// is already queued. The entry always restarts at retry_count 0 in the
// queued state.
func (s *Store) Enqueue(report *models.ViolationReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := models.QueueEntry{
		Report:     *report,
		RetryCount: 0,
		SyncState:  models.SyncQueued,
	}
	if err := s.writeEntry(&entry); err != nil {
		return err
	}
	log.Infof("enqueued report %s (type=%s)", report.ID, report.Type)
	return nil
}

// ListPending returns entries eligible for the sync engine, oldest
// first. Failed entries are excluded; an entry left in the syncing state
// by a crash counts as pending.
func (s *Store) ListPending() ([]models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}
	pending := entries[:0]
	for _, e := range entries {
		if e.SyncState == models.SyncQueued || e.SyncState == models.SyncSyncing {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

// ListFailed returns entries parked after exhausting retries or a
// permanent rejection, oldest first. They stay visible to the user and
// are only retried manually.
func (s *Store) ListFailed() ([]models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}
	failed := entries[:0]
	for _, e := range entries {
		if e.SyncState == models.SyncFailed {
			failed = append(failed, e)
		}
	}
	return failed, nil
}

// Get returns the entry for the report id.
func (s *Store) Get(id string) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readEntry(id)
}

// MarkSyncing flags the entry as having an in-flight submission.
func (s *Store) MarkSyncing(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.readEntry(id)
	if err != nil {
		return err
	}
	entry.SyncState = models.SyncSyncing
	return s.writeEntry(&entry)
}

// MarkSynced removes the entry from the durable queue after the backend
// acknowledged the report.
func (s *Store) MarkSynced(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(keyPrefix + id); err != nil {
		return fmt.Errorf("removing synced entry %s: %w", id, err)
	}
	log.Infof("report %s synced and removed from queue", id)
	return nil
}

// RecordAttempt books a failed submission attempt. Transient outcomes
// increment the retry counter and requeue until the cap is reached;
// permanent outcomes park the entry as failed immediately.
func (s *Store) RecordAttempt(id string, outcome AttemptOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.readEntry(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	entry.LastAttemptAt = &now

	switch outcome {
	case AttemptTransient:
		entry.RetryCount++
		if entry.RetryCount >= s.maxRetries {
			entry.SyncState = models.SyncFailed
			log.Warnf("report %s failed after %d attempts, parking", id, entry.RetryCount)
		} else {
			entry.SyncState = models.SyncQueued
		}
	case AttemptPermanent:
		entry.RetryCount++
		entry.SyncState = models.SyncFailed
		log.Warnf("report %s permanently rejected, parking", id)
	}
	return s.writeEntry(&entry)
}

// ManualRetry requeues a failed entry with a fresh retry budget.
func (s *Store) ManualRetry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.readEntry(id)
	if err != nil {
		return err
	}
	if entry.SyncState != models.SyncFailed {
		return ErrNotFailed
	}
	entry.RetryCount = 0
	entry.LastAttemptAt = nil
	entry.SyncState = models.SyncQueued
	if err := s.writeEntry(&entry); err != nil {
		return err
	}
	log.Infof("report %s manually requeued", id)
	return nil
}

func (s *Store) readAll() ([]models.QueueEntry, error) {
	records, err := s.kv.List(keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing queue: %w", err)
	}
	entries := make([]models.QueueEntry, 0, len(records))
	for _, rec := range records {
		entry, err := decodeEntry(rec.Value)
		if err != nil {
			log.Errorf("skipping undecodable queue record %s: %v", rec.Key, err)
			continue
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Report.CreatedAt.Before(entries[j].Report.CreatedAt)
	})
	return entries, nil
}

func (s *Store) readEntry(id string) (models.QueueEntry, error) {
	value, ok, err := s.kv.Get(keyPrefix + id)
	if err != nil {
		return models.QueueEntry{}, fmt.Errorf("reading entry %s: %w", id, err)
	}
	if !ok {
		return models.QueueEntry{}, ErrNotFound
	}
	return decodeEntry(value)
}

// writeEntry persists the entry. A storage failure is surfaced to the
// caller; the durable queue is only considered changed when the write
// succeeded.
func (s *Store) writeEntry(entry *models.QueueEntry) error {
	value, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := s.kv.Set(keyPrefix+entry.Report.ID, value); err != nil {
		return fmt.Errorf("storage write failed for %s: %w", entry.Report.ID, err)
	}
	return nil
}

func encodeEntry(entry *models.QueueEntry) ([]byte, error) {
	value, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encoding entry %s: %w", entry.Report.ID, err)
	}
	return value, nil
}

func decodeEntry(value []byte) (models.QueueEntry, error) {
	var entry models.QueueEntry
	if err := json.Unmarshal(value, &entry); err != nil {
		return models.QueueEntry{}, fmt.Errorf("decoding entry: %w", err)
	}
	if v := entry.Report.Analysis.Version; v != models.AnalysisVersion {
		return models.QueueEntry{}, fmt.Errorf("unsupported analysis version %d", v)
	}
	return entry, nil
}
