package generation

import (
	"math/rand/v2"

	"canvas-studio-backend/internal/models"
)

// maxSeed keeps random seeds inside what every provider accepts.
const maxSeed = 1 << 31

// ComposeRequest builds the provider request for a job of the given kind from
// the current document. The prompt comes from the override or from the active
// text prompt sticky; sampler settings from the active settings panel; and
// every image shape showing a control adds one conditioning input.
func ComposeRequest(shapes []models.Shape, kind models.JobKind, source *models.Shape, promptOverride string, rng *rand.Rand) models.JobRequest {
	req := models.JobRequest{Kind: kind}
	if source != nil {
		req.SourceImageURL = source.ImageURL
	}
	if kind.IsDerivation() {
		return req
	}

	req.Prompt = promptOverride
	settings := models.DefaultDiffusionSettings()
	for _, s := range shapes {
		if req.Prompt == "" && s.Type == models.ShapeSticky && s.IsTextPrompt {
			req.Prompt = s.Content
		}
		if s.Type == models.ShapeDiffusionSettings && s.UseSettings && s.Settings != nil {
			settings = s.Settings
		}
	}
	req.Model = settings.Model
	req.Steps = settings.Steps
	req.GuidanceScale = settings.GuidanceScale
	req.OutputFormat = settings.OutputFormat
	req.OutputQuality = settings.OutputQuality
	req.Seed = settings.Seed
	if settings.RandomiseSeed {
		if rng != nil {
			req.Seed = rng.Int64N(maxSeed)
		} else {
			req.Seed = rand.Int64N(maxSeed)
		}
	}

	for _, s := range shapes {
		if s.ImageURL == "" || s.IsUploading || s.HasError {
			continue
		}
		for _, kind := range models.ControlKinds {
			c, ok := s.Controls[kind]
			if !ok || !c.Show {
				continue
			}
			req.Controls = append(req.Controls, models.ControlInput{
				Kind:     kind,
				ImageURL: s.ImageURL,
				Strength: models.ClampStrength(c.Strength),
			})
		}
	}
	return req
}
