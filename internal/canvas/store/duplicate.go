package store

import (
	"canvas-studio-backend/internal/models"
)

// Duplicate clones the given shapes with fresh ids, offset by
// models.DuplicateOffset, each inserted directly above its original. Picking
// a group duplicates its members too; member clones follow the cloned group,
// or stay in the original group when only the member was picked.
func (tx *Tx) Duplicate(ids []string) []string {
	selected := map[string]bool{}
	for _, id := range ids {
		i := indexOf(tx.shapes, id)
		if i < 0 {
			continue
		}
		selected[id] = true
		if models.IsGroup(tx.shapes[i]) {
			for _, m := range tx.shapes {
				if m.GroupID == id {
					selected[m.ID] = true
				}
			}
		}
	}
	if len(selected) == 0 {
		return nil
	}

	remap := map[string]string{}
	for _, s := range tx.shapes {
		if selected[s.ID] {
			remap[s.ID] = tx.newID()
		}
	}

	out := make([]models.Shape, 0, len(tx.shapes)+len(selected))
	var created []string
	refresh := map[string]bool{}
	for _, s := range tx.shapes {
		out = append(out, s)
		if !selected[s.ID] {
			continue
		}
		clone := s.Clone()
		clone.ID = remap[s.ID]
		clone.Position.X += models.DuplicateOffset
		clone.Position.Y += models.DuplicateOffset
		clone.IsTextPrompt = false
		clone.UseSettings = false
		clone.IsUploading = false
		if clone.GroupID != "" {
			if newGroup, ok := remap[clone.GroupID]; ok {
				clone.GroupID = newGroup
			} else {
				refresh[clone.GroupID] = true
			}
		}
		out = append(out, clone)
		created = append(created, clone.ID)
	}
	tx.shapes = out
	tx.changed = true
	for groupID := range refresh {
		tx.refreshGroup(groupID)
	}
	return created
}
