package generation

import "canvas-studio-backend/internal/models"

// ExclusivityPolicy says, per control kind, whether only one shape in the
// document may show that control at a time. Kinds missing from the table are
// not exclusive.
type ExclusivityPolicy map[models.ControlKind]bool

// DefaultExclusivity makes every derived-map control exclusive and leaves
// image prompts free to stack.
func DefaultExclusivity() ExclusivityPolicy {
	return ExclusivityPolicy{
		models.ControlDepth:       true,
		models.ControlEdges:       true,
		models.ControlPose:        true,
		models.ControlSketch:      true,
		models.ControlImagePrompt: false,
	}
}

func (p ExclusivityPolicy) Exclusive(kind models.ControlKind) bool {
	return p[kind]
}
