package notice

import (
	"errors"
	"fmt"
	"testing"

	"canvas-studio-backend/internal/faults"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportKeepsLatest(t *testing.T) {
	s := NewSlot()
	assert.Nil(t, s.Current())

	s.Report("persistence", "p1", "", errors.New("first"))
	s.Report("generation", "p1", "s1", fmt.Errorf("job: %w", faults.ErrTimeout))

	n := s.Current()
	require.NotNil(t, n)
	assert.Equal(t, "generation", n.Source)
	assert.Equal(t, "s1", n.ShapeID)
	assert.Equal(t, faults.KindTimeout, n.Kind)
}

func TestListenersSeeReportAndClear(t *testing.T) {
	s := NewSlot()
	var seen []*Notice
	unsubscribe := s.Subscribe(func(n *Notice) { seen = append(seen, n) })

	s.Report("persistence", "p1", "", errors.New("saving failed"))
	s.Clear()
	s.Clear() // already empty, no event
	unsubscribe()
	s.Report("persistence", "p1", "", errors.New("again"))

	require.Len(t, seen, 2)
	assert.Equal(t, "saving failed", seen[0].Message)
	assert.Nil(t, seen[1])
}

func TestReportIgnoresNil(t *testing.T) {
	s := NewSlot()
	s.Report("generation", "", "", nil)
	assert.Nil(t, s.Current())
}
