package models

// ShapePatch is a partial update. Nil fields are left untouched. Identity,
// type and group membership are not patchable; the store owns those.
type ShapePatch struct {
	Position *Point   `json:"position,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
	Color    *string  `json:"color,omitempty"`

	ImageURL      *string   `json:"imageUrl,omitempty"`
	MaskURL       *string   `json:"maskUrl,omitempty"`
	SourceImageID *string   `json:"sourceImageId,omitempty"`
	ModelURL      *string   `json:"modelUrl,omitempty"`
	IsUploading   *bool     `json:"isUploading,omitempty"`
	HasError      *bool     `json:"hasError,omitempty"`
	Logs          *[]string `json:"logs,omitempty"`
	AppendLogs    []string  `json:"appendLogs,omitempty"`
	Controls      Controls  `json:"controls,omitempty"`

	Content      *string  `json:"content,omitempty"`
	IsTextPrompt *bool    `json:"isTextPrompt,omitempty"`
	FontSize     *float64 `json:"fontSize,omitempty"`

	UseSettings *bool              `json:"useSettings,omitempty"`
	Settings    *DiffusionSettings `json:"settings,omitempty"`

	Points      *[]Point `json:"points,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
}

// Apply merges the patch into s. Dimensions are normalized and control
// strengths clamped on the way in.
func (p ShapePatch) Apply(s *Shape) {
	if p.Position != nil {
		s.Position = *p.Position
	}
	if p.Width != nil {
		s.Width = NormalizeDimension(*p.Width)
	}
	if p.Height != nil {
		s.Height = NormalizeDimension(*p.Height)
	}
	if p.Rotation != nil {
		s.Rotation = *p.Rotation
	}
	if p.Color != nil {
		s.Color = *p.Color
	}
	if p.ImageURL != nil {
		s.ImageURL = *p.ImageURL
	}
	if p.MaskURL != nil {
		s.MaskURL = *p.MaskURL
	}
	if p.SourceImageID != nil {
		s.SourceImageID = *p.SourceImageID
	}
	if p.ModelURL != nil {
		s.ModelURL = *p.ModelURL
	}
	if p.IsUploading != nil {
		s.IsUploading = *p.IsUploading
	}
	if p.HasError != nil {
		s.HasError = *p.HasError
	}
	if p.Logs != nil {
		s.Logs = append([]string(nil), (*p.Logs)...)
	}
	if len(p.AppendLogs) > 0 {
		s.Logs = append(s.Logs, p.AppendLogs...)
	}
	if len(p.Controls) > 0 {
		if s.Controls == nil {
			s.Controls = make(Controls, len(p.Controls))
		}
		for kind, c := range p.Controls {
			// zero strength means "only toggling show"
			if c.Strength == 0 {
				c.Strength = DefaultStrength
				if prev, ok := s.Controls[kind]; ok {
					c.Strength = prev.Strength
				}
			}
			c.Strength = ClampStrength(c.Strength)
			s.Controls[kind] = c
		}
	}
	if p.Content != nil {
		s.Content = *p.Content
	}
	if p.IsTextPrompt != nil {
		s.IsTextPrompt = *p.IsTextPrompt && s.Type == ShapeSticky
	}
	if p.FontSize != nil {
		s.FontSize = *p.FontSize
	}
	if p.UseSettings != nil {
		s.UseSettings = *p.UseSettings && s.Type == ShapeDiffusionSettings
	}
	if p.Settings != nil {
		settings := *p.Settings
		s.Settings = &settings
	}
	if p.Points != nil {
		s.Points = append([]Point(nil), (*p.Points)...)
	}
	if p.StrokeWidth != nil {
		s.StrokeWidth = *p.StrokeWidth
	}
}

// Ptr is a small helper for building patches.
func Ptr[T any](v T) *T {
	return &v
}
