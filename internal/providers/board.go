package providers

import (
	"fmt"
	"sync"
	"time"

	"canvas-studio-backend/internal/faults"
	"canvas-studio-backend/internal/models"
)

// recordRetention is how long a terminal record stays readable.
const recordRetention = time.Hour

// RecordBoard is the backing record store of a provider that runs jobs in
// process. Status reads and push subscribers see the same record, the way a
// webhook fed job table serves both paths of a remote provider.
type RecordBoard struct {
	mu       sync.Mutex
	records  map[string]boardEntry
	watchers map[string][]chan models.JobRecord
	now      func() time.Time
}

type boardEntry struct {
	record    models.JobRecord
	updatedAt time.Time
}

func NewRecordBoard() *RecordBoard {
	return &RecordBoard{
		records:  map[string]boardEntry{},
		watchers: map[string][]chan models.JobRecord{},
		now:      time.Now,
	}
}

// Put stores rec and pushes it to the job's watchers. A terminal record
// closes their channels.
func (b *RecordBoard) Put(rec models.JobRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.records[rec.JobID] = boardEntry{record: cloneRecord(rec), updatedAt: now}
	for _, ch := range b.watchers[rec.JobID] {
		select {
		case ch <- cloneRecord(rec):
		default:
			// watchers only need the latest state; a full buffer skips an
			// intermediate record
		}
		if rec.Status.Terminal() {
			close(ch)
		}
	}
	if rec.Status.Terminal() {
		delete(b.watchers, rec.JobID)
	}
	b.prune(now)
}

func (b *RecordBoard) Get(jobID string) (models.JobRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.records[jobID]
	if !ok {
		return models.JobRecord{}, fmt.Errorf("job %s: %w", jobID, faults.ErrNotFound)
	}
	return cloneRecord(e.record), nil
}

// Watch returns a channel that receives the current record, if any, and
// every later one until the job ends.
func (b *RecordBoard) Watch(jobID string) (<-chan models.JobRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.records[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, faults.ErrNotFound)
	}
	ch := make(chan models.JobRecord, 8)
	ch <- cloneRecord(e.record)
	if e.record.Status.Terminal() {
		close(ch)
		return ch, nil
	}
	b.watchers[jobID] = append(b.watchers[jobID], ch)
	return ch, nil
}

// prune must be called with b.mu held.
func (b *RecordBoard) prune(now time.Time) {
	for id, e := range b.records {
		if e.record.Status.Terminal() && now.Sub(e.updatedAt) > recordRetention {
			delete(b.records, id)
		}
	}
}

func cloneRecord(rec models.JobRecord) models.JobRecord {
	if rec.Logs != nil {
		rec.Logs = append([]string(nil), rec.Logs...)
	}
	return rec
}
