package store

import (
	"fmt"

	"canvas-studio-backend/internal/models"
)

// Tx is a working copy of the shape list inside one commit. It is only valid
// inside the func passed to Store.Batch.
type Tx struct {
	shapes  []models.Shape
	newID   func() string
	changed bool
	aborted bool
}

func (tx *Tx) Get(id string) (models.Shape, bool) {
	if i := indexOf(tx.shapes, id); i >= 0 {
		return tx.shapes[i].Clone(), true
	}
	return models.Shape{}, false
}

// Shapes returns a copy of the working list.
func (tx *Tx) Shapes() []models.Shape {
	return models.CloneShapes(tx.shapes)
}

func (tx *Tx) NewID() string {
	return tx.newID()
}

// Add appends shape at the top of the stacking order.
func (tx *Tx) Add(shape models.Shape) error {
	if !shape.Type.Valid() {
		return fmt.Errorf("shape %s: %q: %w", shape.ID, shape.Type, ErrInvalidType)
	}
	if shape.ID == "" {
		shape.ID = tx.newID()
	}
	if indexOf(tx.shapes, shape.ID) >= 0 {
		return ErrDuplicateID
	}
	shape = normalize(shape.Clone())
	if shape.GroupID != "" && !tx.isGroup(shape.GroupID) {
		shape.GroupID = ""
	}
	tx.shapes = append(tx.shapes, shape)
	tx.changed = true
	tx.enforceExclusive(len(tx.shapes) - 1)
	if shape.GroupID != "" {
		tx.refreshGroup(shape.GroupID)
	}
	return nil
}

// Update merges patch into the shape with the given id. It never touches the
// id, the type, group membership or the stacking position.
func (tx *Tx) Update(id string, patch models.ShapePatch) bool {
	i := indexOf(tx.shapes, id)
	if i < 0 {
		return false
	}
	before := tx.shapes[i].Bounds()
	patch.Apply(&tx.shapes[i])
	tx.changed = true
	tx.enforceExclusive(i)

	updated := tx.shapes[i]
	after := updated.Bounds()
	if models.IsGroup(updated) && (after.X != before.X || after.Y != before.Y) {
		tx.translateMembers(updated.ID, after.X-before.X, after.Y-before.Y)
	} else if updated.GroupID != "" && after != before {
		tx.refreshGroup(updated.GroupID)
	}
	return true
}

// Patch applies the same patch to every shape matching pred.
func (tx *Tx) Patch(pred func(models.Shape) bool, patch models.ShapePatch) int {
	n := 0
	for i := range tx.shapes {
		if pred(tx.shapes[i]) {
			if tx.Update(tx.shapes[i].ID, patch) {
				n++
			}
		}
	}
	return n
}

// Delete removes a shape. Members of a deleted group keep existing and only
// lose their group reference.
func (tx *Tx) Delete(id string) bool {
	i := indexOf(tx.shapes, id)
	if i < 0 {
		return false
	}
	deleted := tx.shapes[i]
	tx.shapes = append(tx.shapes[:i], tx.shapes[i+1:]...)
	tx.changed = true

	if models.IsGroup(deleted) {
		tx.clearMembers(deleted.ID)
	} else if deleted.GroupID != "" {
		// drops the group too when this was its last member
		tx.refreshGroup(deleted.GroupID)
	}
	return true
}

// Replace swaps in a whole new document, repairing anything that breaks the
// store invariants: later duplicates are dropped, dangling group references
// cleared, and only the first active prompt and settings panel stay active.
func (tx *Tx) Replace(shapes []models.Shape) {
	seen := make(map[string]bool, len(shapes))
	out := make([]models.Shape, 0, len(shapes))
	for _, sh := range shapes {
		if sh.ID == "" || seen[sh.ID] || !sh.Type.Valid() {
			continue
		}
		seen[sh.ID] = true
		out = append(out, normalize(sh.Clone()))
	}

	groups := map[string]bool{}
	for _, sh := range out {
		if models.IsGroup(sh) {
			groups[sh.ID] = true
		}
	}
	var prompt, settings bool
	for i := range out {
		if out[i].GroupID != "" && !groups[out[i].GroupID] {
			out[i].GroupID = ""
		}
		if out[i].IsTextPrompt {
			if prompt {
				out[i].IsTextPrompt = false
			}
			prompt = true
		}
		if out[i].UseSettings {
			if settings {
				out[i].UseSettings = false
			}
			settings = true
		}
	}
	tx.shapes = out
	tx.changed = true
}

func (tx *Tx) isGroup(id string) bool {
	i := indexOf(tx.shapes, id)
	return i >= 0 && models.IsGroup(tx.shapes[i])
}

// enforceExclusive keeps a single active text prompt and a single active
// settings panel, preferring the shape at index i.
func (tx *Tx) enforceExclusive(i int) {
	active := tx.shapes[i]
	if active.IsTextPrompt {
		for j := range tx.shapes {
			if j != i && tx.shapes[j].IsTextPrompt {
				tx.shapes[j].IsTextPrompt = false
			}
		}
	}
	if active.UseSettings {
		for j := range tx.shapes {
			if j != i && tx.shapes[j].UseSettings {
				tx.shapes[j].UseSettings = false
			}
		}
	}
}

// normalize enforces the per-shape invariants that do not depend on the rest
// of the document.
func normalize(s models.Shape) models.Shape {
	s.Width = models.NormalizeDimension(s.Width)
	s.Height = models.NormalizeDimension(s.Height)
	for kind, c := range s.Controls {
		c.Strength = models.ClampStrength(c.Strength)
		s.Controls[kind] = c
	}
	if s.Type != models.ShapeSticky {
		s.IsTextPrompt = false
	}
	if s.Type != models.ShapeDiffusionSettings {
		s.UseSettings = false
	}
	if models.IsGroup(s) {
		s.GroupID = ""
	}
	return s
}
