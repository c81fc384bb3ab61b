package models

import "math"

type ControlKind string

const (
	ControlDepth       ControlKind = "depth"
	ControlEdges       ControlKind = "edges"
	ControlPose        ControlKind = "pose"
	ControlSketch      ControlKind = "sketch"
	ControlImagePrompt ControlKind = "imagePrompt"
)

var ControlKinds = []ControlKind{
	ControlDepth,
	ControlEdges,
	ControlPose,
	ControlSketch,
	ControlImagePrompt,
}

const (
	MinStrength     = 0.05
	MaxStrength     = 1.00
	DefaultStrength = 0.75
)

// Control is the per-shape state of one conditioning input.
type Control struct {
	Show     bool    `json:"show"`
	Strength float64 `json:"strength"`
}

type Controls map[ControlKind]Control

// ClampStrength bounds a control strength to [MinStrength, MaxStrength].
func ClampStrength(v float64) float64 {
	if math.IsNaN(v) || v < MinStrength {
		return MinStrength
	}
	if v > MaxStrength {
		return MaxStrength
	}
	return v
}

// Showing reports whether the control of the given kind is switched on.
func (c Controls) Showing(kind ControlKind) bool {
	return c != nil && c[kind].Show
}

// ControlForShapeType maps a derived-map shape type to the control it feeds.
func ControlForShapeType(t ShapeType) (ControlKind, bool) {
	switch t {
	case ShapeDepth:
		return ControlDepth, true
	case ShapeEdges:
		return ControlEdges, true
	case ShapePose:
		return ControlPose, true
	case ShapeSketchpad:
		return ControlSketch, true
	case ShapeImage:
		return ControlImagePrompt, true
	case ShapeSticky, ShapeText, ShapeDrawing, ShapeGroup, ShapeDiffusionSettings, Shape3D:
		return "", false
	}
	return "", false
}
