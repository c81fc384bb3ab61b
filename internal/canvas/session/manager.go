// Package session keeps one editing session per open project: the shape
// store, its synchronizer and its generation orchestrator, wired together
// and to the UI event hub.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"canvas-studio-backend/internal/canvas/generation"
	"canvas-studio-backend/internal/canvas/notice"
	"canvas-studio-backend/internal/canvas/persistence"
	"canvas-studio-backend/internal/canvas/store"
	"canvas-studio-backend/internal/faults"
	"canvas-studio-backend/internal/libraries"
	"canvas-studio-backend/internal/models"

	"github.com/google/uuid"
)

// Broadcaster delivers project events to the UI.
type Broadcaster interface {
	Publish(projectID string, msgType libraries.WebSocketMessageType, data interface{})
}

type Deps struct {
	// Documents returns the remote document store scoped to one user.
	Documents  func(userID uuid.UUID) persistence.DocumentStore
	Cache      persistence.LocalCache
	Provider   generation.Provider
	Subscriber generation.Subscriber
	Slot       *notice.Slot
	Hub        Broadcaster
	Generation generation.Config
	Sync       persistence.Config
	Logger     *slog.Logger
}

// ShapesEvent is published for every store version.
type ShapesEvent struct {
	ProjectID string         `json:"project_id"`
	Version   uint64         `json:"version"`
	Shapes    []models.Shape `json:"shapes"`
}

type SaveStatusEvent struct {
	ProjectID string `json:"project_id"`
	persistence.State
}

type Session struct {
	ProjectID string
	UserID    uuid.UUID
	Store     *store.Store
	Sync      *persistence.Synchronizer
	Jobs      *generation.Orchestrator

	unsubscribe func()
}

func (s *Session) close(ctx context.Context) error {
	s.Jobs.Close()
	s.unsubscribe()
	return s.Sync.Close(ctx)
}

// abandon tears the session down without saving.
func (s *Session) abandon() {
	s.Jobs.Close()
	s.unsubscribe()
	s.Sync.Discard()
}

type Manager struct {
	deps Deps
	log  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	stopNotices func()
}

func NewManager(deps Deps) *Manager {
	if deps.Slot == nil {
		deps.Slot = notice.NewSlot()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	deps.Generation.Logger = logger
	deps.Sync.Logger = logger

	m := &Manager{
		deps:     deps,
		log:      logger,
		sessions: map[string]*Session{},
	}
	m.stopNotices = deps.Slot.Subscribe(m.publishNotice)
	return m
}

// Slot is the process wide error slot shared by every session.
func (m *Manager) Slot() *notice.Slot {
	return m.deps.Slot
}

func (m *Manager) publishNotice(n *notice.Notice) {
	if m.deps.Hub == nil {
		return
	}
	if n != nil && n.ProjectID != "" {
		m.deps.Hub.Publish(n.ProjectID, libraries.WebSocketMessageTypeErrorNotice, n)
		return
	}
	// cleared or not tied to a project: every open project shows the slot
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.deps.Hub.Publish(id, libraries.WebSocketMessageTypeErrorNotice, n)
	}
}

// Open returns the session of projectID, loading the document when it is
// not open yet. A project is edited by a single session at a time.
func (m *Manager) Open(ctx context.Context, userID uuid.UUID, projectID string) (*Session, error) {
	if s, ok := m.Lookup(projectID); ok {
		return owned(s, userID, projectID)
	}

	s := m.build(userID, projectID)
	if err := s.Sync.Load(ctx); err != nil {
		s.abandon()
		return nil, fmt.Errorf("open project %s: %w", projectID, err)
	}

	m.mu.Lock()
	if existing, ok := m.sessions[projectID]; ok {
		m.mu.Unlock()
		// lost a race with a concurrent open
		s.abandon()
		return owned(existing, userID, projectID)
	}
	m.sessions[projectID] = s
	m.mu.Unlock()

	m.log.Info("session opened", "project_id", projectID, "shapes", s.Store.Len())
	return s, nil
}

func (m *Manager) build(userID uuid.UUID, projectID string) *Session {
	st := store.New()
	syncCfg := m.deps.Sync
	syncCfg.OnState = func(state persistence.State) {
		if m.deps.Hub != nil {
			m.deps.Hub.Publish(projectID, libraries.WebSocketMessageTypeSaveStatus, SaveStatusEvent{ProjectID: projectID, State: state})
		}
	}

	s := &Session{
		ProjectID: projectID,
		UserID:    userID,
		Store:     st,
		Sync:      persistence.New(projectID, st, m.deps.Documents(userID), m.deps.Cache, m.deps.Slot, syncCfg),
		Jobs:      generation.New(projectID, st, m.deps.Provider, m.deps.Subscriber, m.deps.Slot, m.deps.Generation),
	}
	s.unsubscribe = st.Subscribe(func(snap store.Snapshot) {
		if m.deps.Hub != nil {
			m.deps.Hub.Publish(projectID, libraries.WebSocketMessageTypeShapes, ShapesEvent{
				ProjectID: projectID,
				Version:   snap.Version,
				Shapes:    snap.Shapes,
			})
		}
	})
	return s
}

// Lookup returns the open session of projectID regardless of its owner.
func (m *Manager) Lookup(projectID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[projectID]
	return s, ok
}

func owned(s *Session, userID uuid.UUID, projectID string) (*Session, error) {
	if s.UserID != userID {
		return nil, fmt.Errorf("no open session for project %s: %w", projectID, faults.ErrNotFound)
	}
	return s, nil
}

// Get returns an open session owned by userID.
func (m *Manager) Get(userID uuid.UUID, projectID string) (*Session, error) {
	s, ok := m.Lookup(projectID)
	if !ok {
		return nil, fmt.Errorf("no open session for project %s: %w", projectID, faults.ErrNotFound)
	}
	return owned(s, userID, projectID)
}

// Reactivate reloads the document after the UI regained visibility.
func (m *Manager) Reactivate(ctx context.Context, userID uuid.UUID, projectID string) (*Session, error) {
	s, err := m.Get(userID, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.Sync.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Close ends the session of projectID, flushing its pending save.
func (m *Manager) Close(ctx context.Context, userID uuid.UUID, projectID string) error {
	m.mu.Lock()
	s, ok := m.sessions[projectID]
	if !ok || s.UserID != userID {
		m.mu.Unlock()
		return fmt.Errorf("no open session for project %s: %w", projectID, faults.ErrNotFound)
	}
	delete(m.sessions, projectID)
	m.mu.Unlock()

	m.log.Info("session closed", "project_id", projectID)
	return s.close(ctx)
}

// Discard drops the session of a deleted project without saving it.
func (m *Manager) Discard(projectID string) {
	m.mu.Lock()
	s, ok := m.sessions[projectID]
	delete(m.sessions, projectID)
	m.mu.Unlock()
	if ok {
		s.abandon()
	}
	if m.deps.Cache != nil {
		if err := m.deps.Cache.Delete(projectID); err != nil {
			m.log.Warn("clear cache of deleted project", "project_id", projectID, "error", err)
		}
	}
}

// CloseAll ends every session, as done on shutdown.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	m.stopNotices()
	return errors.Join(errs...)
}

// Len reports the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
