package history

import "time"

// Status is the coarse lifecycle state of a journaled job.
type Status string

const (
	// StatusActive marks a job whose last stage started or completed without
	// producing a final render.
	StatusActive Status = "active"
	// StatusFailed marks a job whose most recent stage failed.
	StatusFailed Status = "failed"
	// StatusRendered marks a job with a fetchable final video.
	StatusRendered Status = "rendered"
)

// Job is the journal summary of one pipeline run.
type Job struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Status       Status    `json:"status"`
	LastStage    string    `json:"last_stage"`
	Step         int       `json:"step"`
	FinalVideo   string    `json:"final_video,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StageEvent is one recorded stage lifecycle change.
type StageEvent struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"job_id"`
	Stage     string    `json:"stage"`
	Kind      string    `json:"kind"`
	Step      int       `json:"step"`
	Message   string    `json:"message,omitempty"`
	Locator   string    `json:"locator,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
