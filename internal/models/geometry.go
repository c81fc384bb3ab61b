package models

import "math"

// MinDimension replaces non-positive widths and heights so a transient bad
// resize never produces a degenerate shape.
const MinDimension = 50.0

// DuplicateOffset is how far a duplicate is shifted from its original.
const DuplicateOffset = 20.0

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NormalizeDimension substitutes MinDimension for non-positive or non-finite values.
func NormalizeDimension(v float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return MinDimension
	}
	return v
}

// IsGroup reports whether the shape is a group container.
func IsGroup(s Shape) bool {
	return s.Type == ShapeGroup
}

// BoundingBoxOf returns the smallest axis-aligned box containing every shape.
// The second result is false for an empty input.
func BoundingBoxOf(shapes []Shape) (Rect, bool) {
	if len(shapes) == 0 {
		return Rect{}, false
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, s := range shapes {
		minX = math.Min(minX, s.Position.X)
		minY = math.Min(minY, s.Position.Y)
		maxX = math.Max(maxX, s.Position.X+s.Width)
		maxY = math.Max(maxY, s.Position.Y+s.Height)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}

// NewShape builds a shape of the given type with its per-type defaults.
func NewShape(id string, t ShapeType, position Point, width, height float64) Shape {
	s := Shape{
		ID:       id,
		Type:     t,
		Position: position,
		Width:    NormalizeDimension(width),
		Height:   NormalizeDimension(height),
	}
	switch t {
	case ShapeSticky:
		s.Color = "#fff9b1"
	case ShapeText:
		s.Color = "#000000"
		s.FontSize = 16
	case ShapeDrawing, ShapeSketchpad:
		s.Color = "#ffffff"
		s.StrokeWidth = 2
	case ShapeDiffusionSettings:
		s.Settings = DefaultDiffusionSettings()
	case ShapeGroup:
		s.Color = "transparent"
	case ShapeImage, Shape3D, ShapeDepth, ShapeEdges, ShapePose:
		s.Color = "transparent"
	}
	return s
}

func DefaultDiffusionSettings() *DiffusionSettings {
	return &DiffusionSettings{
		Model:         "flux-dev",
		Steps:         28,
		GuidanceScale: 3.5,
		RandomiseSeed: true,
		OutputFormat:  "webp",
		OutputQuality: 80,
	}
}
