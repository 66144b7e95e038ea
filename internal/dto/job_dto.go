package dto

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is the polled record of a background unit of work.
type Job struct {
	JobID          string                 `json:"job_id"`
	Status         JobStatus              `json:"status"`
	Operation      string                 `json:"operation"`
	User           string                 `json:"user,omitempty"`
	CollectionName string                 `json:"collection_name,omitempty"`
	Filename       string                 `json:"filename,omitempty"`
	CreatedAt      string                 `json:"created_at"`
	StartedAt      string                 `json:"started_at,omitempty"`
	CompletedAt    string                 `json:"completed_at,omitempty"`
	Result         map[string]interface{} `json:"result,omitempty"`
	Error          string                 `json:"error,omitempty"`
	SessionID      string                 `json:"session_id,omitempty"`
}
