package generation

import (
	"context"

	"canvas-studio-backend/internal/models"
)

// Provider is the image-generation service. Submit returns the provider's
// job id; Status fetches the current record for that id.
type Provider interface {
	Submit(ctx context.Context, req models.JobRequest) (string, error)
	Status(ctx context.Context, jobID string) (models.JobRecord, error)
}

// Subscriber delivers a record every time the job's backing record changes.
// The channel is closed when ctx is done or the stream ends.
type Subscriber interface {
	Subscribe(ctx context.Context, jobID string) (<-chan models.JobRecord, error)
}
