// Package persistence mirrors one document store to a local cache and to the
// remote document store.
//
// Every store version is serialized and compared with what the remote last
// accepted. A changed document is written to the local cache straight away
// and to the remote after a debounce, retrying connectivity failures.
package persistence

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"canvas-studio-backend/internal/canvas/notice"
	"canvas-studio-backend/internal/canvas/store"
	"canvas-studio-backend/internal/faults"
	"canvas-studio-backend/internal/models"
	"canvas-studio-backend/internal/retry"
)

const DefaultDebounce = 2 * time.Second

// DocumentStore is the remote home of a document's shape list.
type DocumentStore interface {
	LoadShapes(ctx context.Context, projectID string) ([]byte, error)
	SaveShapes(ctx context.Context, projectID string, data []byte) error
}

// LocalCache is a key value store keyed by project id.
type LocalCache interface {
	Get(projectID string) ([]byte, bool, error)
	Put(projectID string, data []byte) error
	Delete(projectID string) error
}

type SaveStatus string

const (
	StatusIdle    SaveStatus = "idle"
	StatusPending SaveStatus = "pending"
	StatusSaving  SaveStatus = "saving"
	StatusSaved   SaveStatus = "saved"
	StatusFailed  SaveStatus = "failed"
)

// State drives the save indicator.
type State struct {
	Status    SaveStatus `json:"status"`
	LastError string     `json:"lastError,omitempty"`
	SavedAt   time.Time  `json:"savedAt,omitzero"`
}

type Config struct {
	Debounce time.Duration
	Retry    retry.Policy
	Logger   *slog.Logger
	// OnState is called after every save indicator change.
	OnState func(State)
}

func DefaultConfig() Config {
	return Config{
		Debounce: DefaultDebounce,
		Retry: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Retryable:   faults.IsConnectivity,
		},
	}
}

type Synchronizer struct {
	projectID string
	store     *store.Store
	remote    DocumentStore
	cache     LocalCache
	slot      *notice.Slot
	cfg       Config
	log       *slog.Logger

	// saveMu serializes remote writes so an older document never lands last.
	saveMu sync.Mutex

	mu          sync.Mutex
	lastSaved   []byte
	lastCached  []byte
	dirty       []byte
	timer       *time.Timer
	state       State
	unsubscribe func()
	closed      bool
	// loaded is set once the store holds a document from the remote or the cache
	loaded bool
	// verified is set once the remote has answered a load. Until then the
	// document came from the cache alone and is not written back.
	verified bool
}

func New(projectID string, st *store.Store, remote DocumentStore, cache LocalCache, slot *notice.Slot, cfg Config) *Synchronizer {
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = def.Retry
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if slot == nil {
		slot = notice.NewSlot()
	}
	return &Synchronizer{
		projectID: projectID,
		store:     st,
		remote:    remote,
		cache:     cache,
		slot:      slot,
		cfg:       cfg,
		log:       logger.With("project_id", projectID),
		state:     State{Status: StatusIdle},
	}
}

// Load fetches the document and hydrates the store, then keeps saving every
// change. A non-empty remote list wins; an empty one falls back to a
// non-empty local cache entry, which is then written back to the remote.
// An unreachable remote falls back to the cache too, but with nothing cached
// the load fails and the store is left empty and unsaved.
func (s *Synchronizer) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("synchronizer for %s is closed", s.projectID)
	}
	if s.unsubscribe == nil {
		s.unsubscribe = s.store.Subscribe(s.observe)
	}
	s.mu.Unlock()
	return s.reconcile(ctx, true)
}

// Reload picks up out of band changes, overwriting the store with the remote
// document. Pending edits are flushed first; if that fails the reload is
// abandoned so the edits are not lost.
func (s *Synchronizer) Reload(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return fmt.Errorf("reload %s: %w", s.projectID, err)
	}
	return s.reconcile(ctx, false)
}

// reconcile loads the remote document into the store. On reload an
// unreachable remote leaves the store as it is.
func (s *Synchronizer) reconcile(ctx context.Context, initial bool) error {
	var data []byte
	err := s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var lerr error
		data, lerr = s.remote.LoadShapes(ctx, s.projectID)
		return lerr
	})
	if err != nil {
		err = fmt.Errorf("load %s: %w", s.projectID, err)
		s.slot.Report("persistence", s.projectID, "", err)
		if !faults.IsConnectivity(err) || !initial {
			return err
		}
		cached := s.cached()
		if len(cached) == 0 {
			return err
		}
		// unreachable remote, keep editing from the cache
		s.log.Warn("remote load failed, using local cache", "error", err, "shapes", len(cached))
		s.mu.Lock()
		s.loaded = true
		s.mu.Unlock()
		s.store.Hydrate(cached)
		return nil
	}

	remote, err := models.UnmarshalShapes(data)
	if err != nil {
		err = fmt.Errorf("decode %s: %w", s.projectID, faults.Provider(err.Error()))
		s.slot.Report("persistence", s.projectID, "", err)
		return err
	}
	canonical, err := models.MarshalShapes(remote)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.projectID, err)
	}

	s.mu.Lock()
	s.lastSaved = canonical
	s.dirty = nil
	s.loaded = true
	s.verified = true
	s.stopTimer()
	s.mu.Unlock()

	if len(remote) > 0 {
		s.log.Info("hydrating from remote", "shapes", len(remote))
		s.store.Hydrate(remote)
		return nil
	}
	if cached := s.cached(); len(cached) > 0 {
		// a client only draft: restore it and let the save path write it back
		s.log.Info("remote empty, hydrating from local cache", "shapes", len(cached))
		s.store.Hydrate(cached)
		return nil
	}
	s.store.Hydrate(nil)
	return nil
}

func (s *Synchronizer) cached() []models.Shape {
	if s.cache == nil {
		return nil
	}
	data, ok, err := s.cache.Get(s.projectID)
	if err != nil {
		s.log.Warn("local cache read failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	shapes, err := models.UnmarshalShapes(data)
	if err != nil {
		s.log.Warn("local cache entry unreadable", "error", err)
		return nil
	}
	return shapes
}

// observe is the store observer. It runs on the committing goroutine.
func (s *Synchronizer) observe(snap store.Snapshot) {
	data, err := models.MarshalShapes(snap.Shapes)
	if err != nil {
		s.log.Error("serialize shapes", "version", snap.Version, "error", err)
		return
	}

	s.mu.Lock()
	if s.closed || !s.loaded {
		// edits made before a successful load are neither cached nor saved
		s.mu.Unlock()
		return
	}
	writeCache := s.cache != nil && !bytes.Equal(data, s.lastCached)
	if writeCache {
		s.lastCached = data
	}
	var state *State
	if bytes.Equal(data, s.lastSaved) {
		s.dirty = nil
		s.stopTimer()
		if s.state.Status == StatusPending {
			state = s.setState(State{Status: StatusSaved, SavedAt: s.state.SavedAt})
		}
	} else {
		s.dirty = data
		if s.timer == nil {
			s.timer = time.AfterFunc(s.cfg.Debounce, s.fire)
		} else {
			s.timer.Reset(s.cfg.Debounce)
		}
		if s.state.Status != StatusSaving {
			state = s.setState(State{Status: StatusPending, SavedAt: s.state.SavedAt})
		}
	}
	s.mu.Unlock()

	if writeCache {
		if err := s.cache.Put(s.projectID, data); err != nil {
			s.log.Warn("local cache write failed", "version", snap.Version, "error", err)
		}
	}
	s.emit(state)
}

func (s *Synchronizer) fire() {
	if err := s.save(context.Background()); err != nil {
		s.log.Warn("debounced save failed", "error", err)
	}
}

// Flush saves any pending change now.
func (s *Synchronizer) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.stopTimer()
	s.mu.Unlock()
	return s.save(ctx)
}

func (s *Synchronizer) save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	data := s.dirty
	if data == nil {
		s.mu.Unlock()
		return nil
	}
	s.dirty = nil
	verified := s.verified
	state := s.setState(State{Status: StatusSaving, SavedAt: s.state.SavedAt})
	s.mu.Unlock()
	s.emit(state)

	var err error
	if !verified {
		err = s.verify(ctx)
	}
	attempt := 0
	if err == nil {
		err = s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
			attempt++
			s.log.Debug("saving document", "attempt", attempt, "bytes", len(data))
			return s.remote.SaveShapes(ctx, s.projectID, data)
		})
	}

	s.mu.Lock()
	if err != nil {
		err = fmt.Errorf("save %s: %w", s.projectID, err)
		if s.dirty == nil {
			// keep it for the next flush
			s.dirty = data
		}
		state = s.setState(State{Status: StatusFailed, LastError: err.Error(), SavedAt: s.state.SavedAt})
	} else {
		s.lastSaved = data
		status := StatusSaved
		if s.dirty != nil {
			status = StatusPending
		}
		state = s.setState(State{Status: status, SavedAt: time.Now()})
	}
	s.mu.Unlock()
	s.emit(state)

	if err != nil {
		s.log.Warn("save failed", "attempts", attempt, "error", err)
		s.slot.Report("persistence", s.projectID, "", err)
		return err
	}
	s.log.Info("document saved", "attempts", attempt)
	return nil
}

// verify waits for the remote to answer before the first write of a document
// opened from the cache alone. The local edits then replace the remote copy.
func (s *Synchronizer) verify(ctx context.Context) error {
	err := s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		_, lerr := s.remote.LoadShapes(ctx, s.projectID)
		return lerr
	})
	if err != nil {
		return fmt.Errorf("remote unreachable since load: %w", err)
	}
	s.mu.Lock()
	s.verified = true
	s.mu.Unlock()
	s.log.Info("remote reachable again, writing local edits")
	return nil
}

// Close stops observing the store, flushes the pending save and clears the
// local cache entry. When the flush fails the cache entry is kept so the
// edits survive in it.
func (s *Synchronizer) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.stopTimer()
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if err := s.save(ctx); err != nil {
		return fmt.Errorf("close %s: %w", s.projectID, err)
	}
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(s.projectID); err != nil {
		return fmt.Errorf("clear cache for %s: %w", s.projectID, err)
	}
	return nil
}

// Discard stops observing the store and drops any pending save. The local
// cache entry is left alone.
func (s *Synchronizer) Discard() {
	s.mu.Lock()
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.stopTimer()
	s.dirty = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Status reports the save indicator.
func (s *Synchronizer) Status() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// stopTimer must be called with s.mu held.
func (s *Synchronizer) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
}

// setState must be called with s.mu held. The result is passed to emit once
// the lock is released.
func (s *Synchronizer) setState(st State) *State {
	s.state = st
	return &st
}

func (s *Synchronizer) emit(st *State) {
	if st != nil && s.cfg.OnState != nil {
		s.cfg.OnState(*st)
	}
}
