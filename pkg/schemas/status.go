package schemas

import "time"

// JobState represents the current state of a job.
type JobState string

const (
	JobStatePending           JobState = "pending"
	JobStateValidating        JobState = "validating"
	JobStateDownloadingInputs JobState = "downloading_inputs"
	JobStateProcessing        JobState = "processing"
	JobStateUploadingOutputs  JobState = "uploading_outputs"
	JobStateCompleted         JobState = "completed"
	JobStateFailed            JobState = "failed"
	JobStateCancelled         JobState = "cancelled"
)

// JobStatus represents real-time job status.
type JobStatus struct {
	JobID       string       `json:"job_id"`
	Status      JobState     `json:"status"`
	Progress    *Progress    `json:"progress,omitempty"`
	Error       *ErrorInfo   `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	OutputFiles []OutputFile `json:"output_files,omitempty"`
}

// Progress represents job progress information.
type Progress struct {
	OverallPercent      float64       `json:"overall_percent"`
	CurrentStep         string        `json:"current_step"`
	StepProgress        *StepProgress `json:"step_progress,omitempty"`
	EstimatedCompletion *time.Time    `json:"estimated_completion,omitempty"`
}

// StepProgress contains detailed progress for the current step.
type StepProgress struct {
	DownloadProgress *DownloadProgress `json:"download_progress,omitempty"`
	TrackProgress    []TrackProgress   `json:"track_progress,omitempty"`
	UploadProgress   *UploadProgress   `json:"upload_progress,omitempty"`
}

// DownloadProgress tracks input download progress.
type DownloadProgress struct {
	TotalFiles      int    `json:"total_files"`
	CompletedFiles  int    `json:"completed_files"`
	CurrentFile     string `json:"current_file"`
	BytesDownloaded int64  `json:"bytes_downloaded"`
	TotalBytes      int64  `json:"total_bytes"`
}

// TrackProgress tracks one operation's draining, re-derived from the
// unit counts pipeline.Control's caller observes rather than parsed
// process output (spec.md scopes a progress UI out of the library, but a
// job layer driving it still needs something to report).
type TrackProgress struct {
	Track          string  `json:"track"`
	UnitsProcessed int64   `json:"units_processed"`
	BytesEncoded   int64   `json:"bytes_encoded"`
	CurrentPTS     float64 `json:"current_pts_seconds"`
	EstimatedTotal float64 `json:"estimated_total_seconds,omitempty"`
}

// UploadProgress tracks output upload progress.
type UploadProgress struct {
	TotalFiles     int    `json:"total_files"`
	CompletedFiles int    `json:"completed_files"`
	CurrentFile    string `json:"current_file"`
	BytesUploaded  int64  `json:"bytes_uploaded"`
	TotalBytes     int64  `json:"total_bytes"`
}

// OutputFile contains information about an output file.
type OutputFile struct {
	OutputID    string  `json:"output_id"`
	Destination string  `json:"destination"`
	FileSize    int64   `json:"file_size"`
	Duration    float64 `json:"duration,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Retryable  bool                   `json:"retryable"`
	RetryAfter *time.Duration         `json:"retry_after,omitempty"`
}
