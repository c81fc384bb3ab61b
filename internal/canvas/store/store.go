// Package store holds the authoritative shape list of one open document.
//
// Every mutation runs as a transaction over a private copy of the list and,
// when it changed something, commits exactly one new version. Observers see
// versions in commit order. A mutation issued from inside an observer is
// queued and delivered after the snapshot currently being delivered.
package store

import (
	"fmt"
	"sync"

	"canvas-studio-backend/internal/faults"
	"canvas-studio-backend/internal/models"

	"github.com/google/uuid"
)

// ErrDuplicateID is returned by AddShape when the id is already taken.
var ErrDuplicateID = fmt.Errorf("duplicate shape id: %w", faults.ErrValidation)

// ErrInvalidType is returned by AddShape for a missing or unknown shape type.
var ErrInvalidType = fmt.Errorf("invalid shape type: %w", faults.ErrValidation)

// Snapshot is an immutable view of one store version.
type Snapshot struct {
	Version uint64
	Shapes  []models.Shape
}

type Observer func(Snapshot)

type Store struct {
	mu      sync.Mutex
	shapes  []models.Shape
	version uint64
	newID   func() string

	observers  map[int]Observer
	nextObsID  int
	pending    []Snapshot
	delivering bool
}

type Option func(*Store)

// WithIDGenerator replaces the uuid based id source, mostly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		shapes:    []models.Shape{},
		newID:     uuid.NewString,
		observers: map[int]Observer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID hands out an id from the store's generator.
func (s *Store) NewID() string {
	return s.newID()
}

// Subscribe registers an observer and returns a func that removes it.
func (s *Store) Subscribe(o Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = o
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// Snapshot returns a deep copy of the current version.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Version: s.version, Shapes: models.CloneShapes(s.shapes)}
}

func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *Store) Get(id string) (models.Shape, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.shapes, id); i >= 0 {
		return s.shapes[i].Clone(), true
	}
	return models.Shape{}, false
}

func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOf(s.shapes, id) >= 0
}

// IDs returns shape ids in stacking order, back to front.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.shapes))
	for i, sh := range s.shapes {
		ids[i] = sh.ID
	}
	return ids
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shapes)
}

// Batch runs fn as one transaction. If fn returns an error nothing is
// committed; otherwise all its changes land in a single version.
func (s *Store) Batch(fn func(tx *Tx) error) error {
	var err error
	s.commit(func(tx *Tx) {
		err = fn(tx)
		if err != nil {
			tx.aborted = true
		}
	})
	return err
}

// AddShape appends shape at the top of the stacking order.
func (s *Store) AddShape(shape models.Shape) error {
	return s.Batch(func(tx *Tx) error { return tx.Add(shape) })
}

// UpdateShape merges patch into the shape. Absent ids are ignored.
func (s *Store) UpdateShape(id string, patch models.ShapePatch) {
	s.commit(func(tx *Tx) { tx.Update(id, patch) })
}

// Update is one entry of an UpdateShapes batch.
type Update struct {
	ID    string            `json:"id"`
	Patch models.ShapePatch `json:"patch"`
}

// UpdateShapes applies every update in a single version.
func (s *Store) UpdateShapes(batch []Update) {
	s.commit(func(tx *Tx) {
		for _, u := range batch {
			tx.Update(u.ID, u.Patch)
		}
	})
}

// DeleteShape removes a shape. Deleting a group ungroups its members.
// Deleting the last member of a group also removes the emptied group.
func (s *Store) DeleteShape(id string) {
	s.commit(func(tx *Tx) { tx.Delete(id) })
}

func (s *Store) SendForward(id string)  { s.commit(func(tx *Tx) { tx.Move(id, MoveForward) }) }
func (s *Store) SendBackward(id string) { s.commit(func(tx *Tx) { tx.Move(id, MoveBackward) }) }
func (s *Store) SendToFront(id string)  { s.commit(func(tx *Tx) { tx.Move(id, MoveToFront) }) }
func (s *Store) SendToBack(id string)   { s.commit(func(tx *Tx) { tx.Move(id, MoveToBack) }) }

// Move applies a named stacking move.
func (s *Store) Move(id string, m Movement) {
	s.commit(func(tx *Tx) { tx.Move(id, m) })
}

// CreateGroup groups the eligible ids and returns the new group id. The
// second result is false when fewer than two eligible ids were supplied.
func (s *Store) CreateGroup(ids []string) (string, bool) {
	var groupID string
	var ok bool
	s.commit(func(tx *Tx) { groupID, ok = tx.CreateGroup(ids) })
	return groupID, ok
}

func (s *Store) Ungroup(groupID string) {
	s.commit(func(tx *Tx) { tx.Ungroup(groupID) })
}

func (s *Store) AddToGroup(ids []string, groupID string) {
	s.commit(func(tx *Tx) { tx.AddToGroup(ids, groupID) })
}

// RemoveFromGroup ungroups the given members. A group left empty is removed.
func (s *Store) RemoveFromGroup(ids []string) {
	s.commit(func(tx *Tx) { tx.RemoveFromGroup(ids) })
}

// Duplicate clones the shapes and returns the new ids in stacking order.
func (s *Store) Duplicate(ids []string) []string {
	var out []string
	s.commit(func(tx *Tx) { out = tx.Duplicate(ids) })
	return out
}

// Hydrate replaces the whole document, as done on load and reload. It always
// produces a version, even when the content is unchanged.
func (s *Store) Hydrate(shapes []models.Shape) {
	s.commit(func(tx *Tx) { tx.Replace(shapes) })
}

func (s *Store) commit(fn func(tx *Tx)) {
	s.mu.Lock()
	tx := &Tx{shapes: models.CloneShapes(s.shapes), newID: s.newID}
	fn(tx)
	if tx.aborted || !tx.changed {
		s.mu.Unlock()
		return
	}
	s.shapes = tx.shapes
	s.version++
	s.pending = append(s.pending, Snapshot{Version: s.version, Shapes: models.CloneShapes(s.shapes)})
	if s.delivering {
		// the goroutine already delivering will pick this one up
		s.mu.Unlock()
		return
	}
	s.delivering = true
	for len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		observers := make([]Observer, 0, len(s.observers))
		for _, o := range s.observers {
			observers = append(observers, o)
		}
		s.mu.Unlock()
		for _, o := range observers {
			o(next)
		}
		s.mu.Lock()
	}
	s.delivering = false
	s.mu.Unlock()
}

func indexOf(shapes []models.Shape, id string) int {
	for i := range shapes {
		if shapes[i].ID == id {
			return i
		}
	}
	return -1
}
