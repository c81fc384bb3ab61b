// Package notice holds the process-wide error slot the UI displays. The
// orchestrator and the synchronizer report failures here instead of
// returning them to an interactive caller.
package notice

import (
	"sync"
	"time"

	"canvas-studio-backend/internal/faults"
)

type Notice struct {
	Source    string      `json:"source"`
	Message   string      `json:"message"`
	Kind      faults.Kind `json:"kind"`
	ProjectID string      `json:"project_id,omitempty"`
	ShapeID   string      `json:"shape_id,omitempty"`
	At        time.Time   `json:"at"`
}

type Listener func(n *Notice)

// Slot keeps only the most recent notice. A nil notice passed to listeners
// means the slot was cleared.
type Slot struct {
	mu        sync.Mutex
	current   *Notice
	nextID    int
	listeners map[int]Listener
	now       func() time.Time
}

func NewSlot() *Slot {
	return &Slot{listeners: map[int]Listener{}, now: time.Now}
}

// Report stores err in the slot, replacing whatever was there.
func (s *Slot) Report(source, projectID, shapeID string, err error) {
	if err == nil {
		return
	}
	n := &Notice{
		Source:    source,
		Message:   err.Error(),
		Kind:      faults.Classify(err),
		ProjectID: projectID,
		ShapeID:   shapeID,
	}
	s.mu.Lock()
	n.At = s.now()
	s.current = n
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	for _, l := range listeners {
		cp := *n
		l(&cp)
	}
}

// Current returns a copy of the active notice, or nil.
func (s *Slot) Current() *Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	n := *s.current
	return &n
}

func (s *Slot) Clear() {
	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if !had {
		return
	}
	for _, l := range listeners {
		l(nil)
	}
}

// Subscribe registers l and returns a func that removes it.
func (s *Slot) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Slot) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}
