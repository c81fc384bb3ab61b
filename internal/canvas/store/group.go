package store

import (
	"canvas-studio-backend/internal/models"
)

// CreateGroup wraps the eligible (existing, non-group, groupless) ids in a new
// group sized to their bounding box. The group is stacked directly below its
// lowest member so it never paints over them.
func (tx *Tx) CreateGroup(ids []string) (string, bool) {
	members := tx.eligibleMembers(ids)
	if len(members) < 2 {
		return "", false
	}

	shapes := make([]models.Shape, 0, len(members))
	lowest := len(tx.shapes)
	for _, i := range members {
		shapes = append(shapes, tx.shapes[i])
		if i < lowest {
			lowest = i
		}
	}
	box, _ := models.BoundingBoxOf(shapes)

	group := models.NewShape(tx.newID(), models.ShapeGroup, models.Point{X: box.X, Y: box.Y}, box.Width, box.Height)
	group.Width, group.Height = box.Width, box.Height
	for _, i := range members {
		tx.shapes[i].GroupID = group.ID
	}
	tx.shapes = append(tx.shapes, models.Shape{})
	copy(tx.shapes[lowest+1:], tx.shapes[lowest:])
	tx.shapes[lowest] = group
	tx.changed = true
	return group.ID, true
}

// Ungroup deletes the group shape. Members keep their absolute geometry.
func (tx *Tx) Ungroup(groupID string) bool {
	if !tx.isGroup(groupID) {
		return false
	}
	return tx.Delete(groupID)
}

// AddToGroup moves eligible ids into an existing group.
func (tx *Tx) AddToGroup(ids []string, groupID string) bool {
	if !tx.isGroup(groupID) {
		return false
	}
	members := tx.eligibleMembers(ids)
	if len(members) == 0 {
		return false
	}
	for _, i := range members {
		tx.shapes[i].GroupID = groupID
	}
	tx.changed = true
	tx.refreshGroup(groupID)
	return true
}

// RemoveFromGroup detaches the ids from whatever group they are in. A group
// left without members is removed.
func (tx *Tx) RemoveFromGroup(ids []string) bool {
	touched := map[string]bool{}
	for _, id := range ids {
		i := indexOf(tx.shapes, id)
		if i < 0 || tx.shapes[i].GroupID == "" {
			continue
		}
		touched[tx.shapes[i].GroupID] = true
		tx.shapes[i].GroupID = ""
	}
	if len(touched) == 0 {
		return false
	}
	tx.changed = true
	for groupID := range touched {
		tx.refreshGroup(groupID)
	}
	return true
}

// Members returns the shapes whose groupId points at groupID, in stacking order.
func (tx *Tx) Members(groupID string) []models.Shape {
	var out []models.Shape
	for _, s := range tx.shapes {
		if s.GroupID == groupID {
			out = append(out, s.Clone())
		}
	}
	return out
}

func (tx *Tx) eligibleMembers(ids []string) []int {
	seen := map[string]bool{}
	var out []int
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		i := indexOf(tx.shapes, id)
		if i < 0 {
			continue
		}
		s := tx.shapes[i]
		if models.IsGroup(s) || s.GroupID != "" {
			continue
		}
		out = append(out, i)
	}
	return out
}

// refreshGroup resizes the group to its members, or removes it once empty.
func (tx *Tx) refreshGroup(groupID string) {
	gi := indexOf(tx.shapes, groupID)
	if gi < 0 {
		return
	}
	members := tx.Members(groupID)
	if len(members) == 0 {
		tx.shapes = append(tx.shapes[:gi], tx.shapes[gi+1:]...)
		tx.changed = true
		return
	}
	box, _ := models.BoundingBoxOf(members)
	g := &tx.shapes[gi]
	g.Position = models.Point{X: box.X, Y: box.Y}
	g.Width, g.Height = box.Width, box.Height
	tx.changed = true
}

func (tx *Tx) translateMembers(groupID string, dx, dy float64) {
	for i := range tx.shapes {
		if tx.shapes[i].GroupID == groupID {
			tx.shapes[i].Position.X += dx
			tx.shapes[i].Position.Y += dy
		}
	}
}

func (tx *Tx) clearMembers(groupID string) {
	for i := range tx.shapes {
		if tx.shapes[i].GroupID == groupID {
			tx.shapes[i].GroupID = ""
		}
	}
}
