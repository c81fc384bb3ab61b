package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampStrength(t *testing.T) {
	assert.Equal(t, MinStrength, ClampStrength(0))
	assert.Equal(t, MinStrength, ClampStrength(-3))
	assert.Equal(t, MinStrength, ClampStrength(math.NaN()))
	assert.Equal(t, MaxStrength, ClampStrength(1.7))
	assert.Equal(t, 0.4, ClampStrength(0.4))
}

func TestNewShapeSubstitutesMinimumDimensions(t *testing.T) {
	s := NewShape("a", ShapeImage, Point{X: 1, Y: 2}, 0, -20)
	assert.Equal(t, MinDimension, s.Width)
	assert.Equal(t, MinDimension, s.Height)

	s = NewShape("b", ShapeText, Point{}, math.Inf(1), 30)
	assert.Equal(t, MinDimension, s.Width)
	assert.Equal(t, 30.0, s.Height)
	assert.Equal(t, 16.0, s.FontSize)

	settings := NewShape("c", ShapeDiffusionSettings, Point{}, 200, 300)
	require.NotNil(t, settings.Settings)
	assert.True(t, settings.Settings.RandomiseSeed)
}

func TestBoundingBoxOf(t *testing.T) {
	_, ok := BoundingBoxOf(nil)
	assert.False(t, ok)

	box, ok := BoundingBoxOf([]Shape{
		NewShape("a", ShapeSticky, Point{X: 10, Y: 20}, 100, 100),
		NewShape("b", ShapeSticky, Point{X: -30, Y: 50}, 60, 200),
	})
	require.True(t, ok)
	assert.Equal(t, Rect{X: -30, Y: 20, Width: 140, Height: 230}, box)
}

func TestCloneIsDeep(t *testing.T) {
	s := NewShape("a", ShapeImage, Point{}, 100, 100)
	s.Logs = []string{"queued"}
	s.Controls = Controls{ControlImagePrompt: {Show: true, Strength: 0.5}}

	c := s.Clone()
	c.Logs[0] = "changed"
	c.Controls[ControlImagePrompt] = Control{}

	assert.Equal(t, "queued", s.Logs[0])
	assert.True(t, s.Controls.Showing(ControlImagePrompt))
}

func TestShapesRoundTripPreservesOrderAndFloats(t *testing.T) {
	a := NewShape("a", ShapeDrawing, Point{X: 0.1, Y: 1e-9}, 123.456789012345, 50)
	a.Points = []Point{{X: 1.0 / 3, Y: 2.0 / 3}}
	b := NewShape("b", ShapeSticky, Point{X: -5, Y: 7}, 100, 100)
	b.IsTextPrompt = true

	data, err := MarshalShapes([]Shape{a, b})
	require.NoError(t, err)
	got, err := UnmarshalShapes(data)
	require.NoError(t, err)
	assert.Equal(t, []Shape{a, b}, got)
}

func TestUnmarshalShapesRejectsUnknownType(t *testing.T) {
	_, err := UnmarshalShapes([]byte(`[{"id":"a","type":"hexagon"}]`))
	assert.Error(t, err)

	shapes, err := UnmarshalShapes(nil)
	require.NoError(t, err)
	assert.Empty(t, shapes)
	data, err := MarshalShapes(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestEveryTypeIsClassified(t *testing.T) {
	for _, st := range ShapeTypes {
		assert.True(t, st.Valid(), st)
		_ = NewShape("x", st, Point{}, 10, 10)
	}
	assert.False(t, ShapeType("circle").Valid())
	for _, k := range []JobKind{JobDepth, JobEdges, JobPose} {
		assert.True(t, k.IsDerivation())
		control, ok := k.Control()
		require.True(t, ok)
		mapped, ok := ControlForShapeType(k.ShapeType())
		require.True(t, ok)
		assert.Equal(t, control, mapped)
	}
	assert.Equal(t, ShapeImage, JobGenerate.ShapeType())
}
