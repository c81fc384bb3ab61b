package models

import "time"

type JobKind string

const (
	JobGenerate JobKind = "generate"
	JobDepth    JobKind = "depth"
	JobEdges    JobKind = "edges"
	JobPose     JobKind = "pose"
)

func (k JobKind) Valid() bool {
	switch k {
	case JobGenerate, JobDepth, JobEdges, JobPose:
		return true
	}
	return false
}

// IsDerivation reports whether the job runs a single preprocessing step
// rather than a full generation.
func (k JobKind) IsDerivation() bool {
	return k == JobDepth || k == JobEdges || k == JobPose
}

// ShapeType is the type of the placeholder a job of this kind fills in.
func (k JobKind) ShapeType() ShapeType {
	switch k {
	case JobDepth:
		return ShapeDepth
	case JobEdges:
		return ShapeEdges
	case JobPose:
		return ShapePose
	case JobGenerate:
		return ShapeImage
	}
	return ShapeImage
}

// Control returns the control a derivation result feeds.
func (k JobKind) Control() (ControlKind, bool) {
	switch k {
	case JobDepth:
		return ControlDepth, true
	case JobEdges:
		return ControlEdges, true
	case JobPose:
		return ControlPose, true
	case JobGenerate:
		return "", false
	}
	return "", false
}

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobSucceeded  JobStatus = "succeeded"
	JobFailed     JobStatus = "failed"
	JobCanceled   JobStatus = "canceled"
	// JobTimedOut is never reported by a provider; the orchestrator assigns
	// it when the poll budget runs out.
	JobTimedOut JobStatus = "timeout"
)

func (s JobStatus) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCanceled, JobTimedOut:
		return true
	}
	return false
}

// GenerationJob is one in-flight provider job. It is never persisted.
type GenerationJob struct {
	JobID         string    `json:"jobId"`
	TargetShapeID string    `json:"targetShapeId"`
	Kind          JobKind   `json:"kind"`
	CreatedAt     time.Time `json:"createdAt"`
}

// JobRecord is what the provider reports for a job, via poll or push.
type JobRecord struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	ResultURL string    `json:"resultUrl,omitempty"`
	MaskURL   string    `json:"maskUrl,omitempty"`
	Width     float64   `json:"width,omitempty"`
	Height    float64   `json:"height,omitempty"`
	Logs      []string  `json:"logs,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// ControlInput is one conditioning image sent with a generation job.
type ControlInput struct {
	Kind     ControlKind `json:"kind"`
	ImageURL string      `json:"imageUrl"`
	Strength float64     `json:"strength"`
}

// JobRequest is the provider-facing description of a job.
type JobRequest struct {
	Kind           JobKind        `json:"kind"`
	Prompt         string         `json:"prompt,omitempty"`
	SourceImageURL string         `json:"sourceImageUrl,omitempty"`
	Controls       []ControlInput `json:"controls,omitempty"`
	Model          string         `json:"model,omitempty"`
	Steps          int            `json:"steps,omitempty"`
	GuidanceScale  float64        `json:"guidanceScale,omitempty"`
	Seed           int64          `json:"seed"`
	OutputFormat   string         `json:"outputFormat,omitempty"`
	OutputQuality  int            `json:"outputQuality,omitempty"`
}
