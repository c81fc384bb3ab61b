package models

import (
	"encoding/json"
	"fmt"
)

type ShapeType string

const (
	ShapeImage             ShapeType = "image"
	ShapeSticky            ShapeType = "sticky"
	ShapeSketchpad         ShapeType = "sketchpad"
	ShapeText              ShapeType = "text"
	ShapeDrawing           ShapeType = "drawing"
	ShapeGroup             ShapeType = "group"
	ShapeDiffusionSettings ShapeType = "diffusionSettings"
	Shape3D                ShapeType = "3d"
	ShapeDepth             ShapeType = "depth"
	ShapeEdges             ShapeType = "edges"
	ShapePose              ShapeType = "pose"
)

// ShapeTypes lists every shape kind the canvas knows about.
var ShapeTypes = []ShapeType{
	ShapeImage,
	ShapeSticky,
	ShapeSketchpad,
	ShapeText,
	ShapeDrawing,
	ShapeGroup,
	ShapeDiffusionSettings,
	Shape3D,
	ShapeDepth,
	ShapeEdges,
	ShapePose,
}

func (t ShapeType) Valid() bool {
	switch t {
	case ShapeImage, ShapeSticky, ShapeSketchpad, ShapeText, ShapeDrawing, ShapeGroup,
		ShapeDiffusionSettings, Shape3D, ShapeDepth, ShapeEdges, ShapePose:
		return true
	}
	return false
}

// IsDerivedMap reports whether shapes of this type hold a preprocessing result
// (depth, edges, pose) computed from a source image.
func (t ShapeType) IsDerivedMap() bool {
	switch t {
	case ShapeDepth, ShapeEdges, ShapePose:
		return true
	}
	return false
}

// HoldsImage reports whether the type renders an image payload.
func (t ShapeType) HoldsImage() bool {
	switch t {
	case ShapeImage, ShapeSketchpad, ShapeDepth, ShapeEdges, ShapePose, Shape3D:
		return true
	}
	return false
}

func (t *ShapeType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v := ShapeType(s)
	if !v.Valid() {
		return fmt.Errorf("unsupported shape type: %s", s)
	}
	*t = v
	return nil
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DiffusionSettings is the payload of a diffusionSettings panel.
type DiffusionSettings struct {
	Model         string  `json:"model,omitempty"`
	Steps         int     `json:"steps"`
	GuidanceScale float64 `json:"guidanceScale"`
	Seed          int64   `json:"seed"`
	RandomiseSeed bool    `json:"randomiseSeed"`
	OutputFormat  string  `json:"outputFormat,omitempty"`
	OutputQuality int     `json:"outputQuality"`
}

// Shape is one object on the canvas. Common geometry lives at the top, the
// rest is per-type payload that stays zero for types that do not use it.
type Shape struct {
	ID       string    `json:"id"`
	Type     ShapeType `json:"type"`
	Position Point     `json:"position"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Rotation float64   `json:"rotation"`
	Color    string    `json:"color,omitempty"`
	GroupID  string    `json:"groupId,omitempty"`

	// image, sketchpad, 3d and derived maps
	ImageURL      string   `json:"imageUrl,omitempty"`
	MaskURL       string   `json:"maskUrl,omitempty"`
	SourceImageID string   `json:"sourceImageId,omitempty"`
	ModelURL      string   `json:"modelUrl,omitempty"`
	IsUploading   bool     `json:"isUploading,omitempty"`
	HasError      bool     `json:"hasError,omitempty"`
	Logs          []string `json:"logs,omitempty"`
	Controls      Controls `json:"controls,omitempty"`

	// sticky and text
	Content      string  `json:"content,omitempty"`
	IsTextPrompt bool    `json:"isTextPrompt,omitempty"`
	FontSize     float64 `json:"fontSize,omitempty"`

	// diffusionSettings
	UseSettings bool               `json:"useSettings,omitempty"`
	Settings    *DiffusionSettings `json:"settings,omitempty"`

	// drawing and sketchpad strokes
	Points      []Point `json:"points,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
}

// Clone returns a deep copy so callers never share slices or maps with the store.
func (s Shape) Clone() Shape {
	out := s
	if s.Logs != nil {
		out.Logs = append([]string(nil), s.Logs...)
	}
	if s.Points != nil {
		out.Points = append([]Point(nil), s.Points...)
	}
	if s.Controls != nil {
		out.Controls = make(Controls, len(s.Controls))
		for k, v := range s.Controls {
			out.Controls[k] = v
		}
	}
	if s.Settings != nil {
		settings := *s.Settings
		out.Settings = &settings
	}
	return out
}

// Bounds returns the axis-aligned box covered by the shape, ignoring rotation.
func (s Shape) Bounds() Rect {
	return Rect{X: s.Position.X, Y: s.Position.Y, Width: s.Width, Height: s.Height}
}

// CloneShapes deep copies a shape list preserving order.
func CloneShapes(shapes []Shape) []Shape {
	out := make([]Shape, len(shapes))
	for i, s := range shapes {
		out[i] = s.Clone()
	}
	return out
}

// MarshalShapes serializes a shape list for the local cache and the remote
// document. Order is preserved and floats round-trip exactly.
func MarshalShapes(shapes []Shape) ([]byte, error) {
	if shapes == nil {
		shapes = []Shape{}
	}
	return json.Marshal(shapes)
}

func UnmarshalShapes(data []byte) ([]Shape, error) {
	if len(data) == 0 {
		return []Shape{}, nil
	}
	var shapes []Shape
	if err := json.Unmarshal(data, &shapes); err != nil {
		return nil, fmt.Errorf("decode shapes: %w", err)
	}
	if shapes == nil {
		shapes = []Shape{}
	}
	return shapes, nil
}
