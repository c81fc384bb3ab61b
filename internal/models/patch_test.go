package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatchApply(t *testing.T) {
	s := NewShape("a", ShapeImage, Point{}, 100, 100)
	s.Logs = []string{"queued"}

	ShapePatch{
		Width:      Ptr(-1.0),
		Color:      Ptr("#123456"),
		AppendLogs: []string{"running"},
		HasError:   Ptr(true),
	}.Apply(&s)

	assert.Equal(t, MinDimension, s.Width)
	assert.Equal(t, 100.0, s.Height)
	assert.Equal(t, "#123456", s.Color)
	assert.Equal(t, []string{"queued", "running"}, s.Logs)
	assert.True(t, s.HasError)

	ShapePatch{Logs: &[]string{"replaced"}}.Apply(&s)
	assert.Equal(t, []string{"replaced"}, s.Logs)
}

func TestPatchControls(t *testing.T) {
	s := NewShape("a", ShapeDepth, Point{}, 100, 100)

	ShapePatch{Controls: Controls{ControlDepth: {Show: true, Strength: 4}}}.Apply(&s)
	assert.Equal(t, Control{Show: true, Strength: MaxStrength}, s.Controls[ControlDepth])

	// toggling show keeps the previous strength
	ShapePatch{Controls: Controls{ControlDepth: {Show: false}}}.Apply(&s)
	assert.Equal(t, Control{Show: false, Strength: MaxStrength}, s.Controls[ControlDepth])

	ShapePatch{Controls: Controls{ControlEdges: {Show: true}}}.Apply(&s)
	assert.Equal(t, DefaultStrength, s.Controls[ControlEdges].Strength)
}

func TestPatchFlagsOnlyApplyToTheirType(t *testing.T) {
	text := NewShape("t", ShapeText, Point{}, 100, 40)
	ShapePatch{IsTextPrompt: Ptr(true), UseSettings: Ptr(true)}.Apply(&text)
	assert.False(t, text.IsTextPrompt)
	assert.False(t, text.UseSettings)

	sticky := NewShape("s", ShapeSticky, Point{}, 100, 100)
	ShapePatch{IsTextPrompt: Ptr(true)}.Apply(&sticky)
	assert.True(t, sticky.IsTextPrompt)
}
