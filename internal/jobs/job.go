package jobs

import (
	"time"

	"github.com/gwlsn/augmentor/internal/media"
	"github.com/gwlsn/augmentor/internal/timeline"
)

// State represents the current stage of the workflow
type State string

const (
	StateIdle       State = "idle"
	StateUploading  State = "uploading"
	StateUploaded   State = "uploaded"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// InFlight returns true while a request for the job is outstanding
func (s State) InFlight() bool {
	return s == StateUploading || s == StateProcessing
}

// IsTerminal returns true if the job is in a terminal state
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Result is the outcome of a successful process request
type Result struct {
	Message        string          `json:"message"`
	ProcessedCount int             `json:"processed_count"`
	ArtifactRef    string          `json:"artifact_ref"`
	TimeRange      *timeline.Range `json:"time_range,omitempty"`
}

// Job is a point-in-time view of the controller's current job
type Job struct {
	ID         string      `json:"id"`
	Generation uint64      `json:"generation"`
	Kind       media.Kind  `json:"kind"`
	State      State       `json:"state"`
	File       *media.File `json:"file,omitempty"`
	Token      string      `json:"token,omitempty"` // server-side name after upload
	Result     *Result     `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`

	// Err is the failure behind Error, kept for errors.As by presenters.
	Err error `json:"-"`
}

// Copy returns a copy safe to hand to other goroutines
func (j *Job) Copy() *Job {
	cp := *j
	if j.Result != nil {
		r := *j.Result
		if j.Result.TimeRange != nil {
			tr := *j.Result.TimeRange
			r.TimeRange = &tr
		}
		cp.Result = &r
	}
	return &cp
}

// Event is sent to subscribers on every state change
type Event struct {
	Type string `json:"type"` // the new state
	Job  *Job   `json:"job"`
}
