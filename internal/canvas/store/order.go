package store

import "fmt"

type Movement string

const (
	MoveForward  Movement = "forward"
	MoveBackward Movement = "backward"
	MoveToFront  Movement = "front"
	MoveToBack   Movement = "back"
)

func ParseMovement(s string) (Movement, error) {
	switch m := Movement(s); m {
	case MoveForward, MoveBackward, MoveToFront, MoveToBack:
		return m, nil
	}
	return "", fmt.Errorf("unknown movement %q", s)
}

// Move shifts one shape in the stacking order. Index 0 is the back. Moving a
// shape that already sits at the requested extreme is a no-op.
func (tx *Tx) Move(id string, m Movement) bool {
	i := indexOf(tx.shapes, id)
	if i < 0 {
		return false
	}
	last := len(tx.shapes) - 1
	var to int
	switch m {
	case MoveForward:
		to = i + 1
	case MoveBackward:
		to = i - 1
	case MoveToFront:
		to = last
	case MoveToBack:
		to = 0
	default:
		return false
	}
	if to < 0 || to > last || to == i {
		return false
	}
	tx.moveIndex(i, to)
	return true
}

func (tx *Tx) moveIndex(from, to int) {
	shape := tx.shapes[from]
	if from < to {
		copy(tx.shapes[from:to], tx.shapes[from+1:to+1])
	} else {
		copy(tx.shapes[to+1:from+1], tx.shapes[to:from])
	}
	tx.shapes[to] = shape
	tx.changed = true
}
