package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusQueued       JobStatus = "queued"
	StatusProcessing   JobStatus = "processing"
	StatusLoadingModel JobStatus = "loading_model"
	StatusTranscribing JobStatus = "transcribing"
	StatusDone         JobStatus = "done"
	StatusError        JobStatus = "error"
)

// Terminal reports whether a status can never be left again
// (except through an explicit resubmission reset).
func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Job is one tracked transcription/translation request.
// Records are owned by the repository; the worker mutates them by ID
// through repository callbacks and never holds one across the queue.
type Job struct {
	ID        uuid.UUID `json:"id"`
	Filename  string    `json:"filename"`
	Model     string    `json:"model"`
	Format    string    `json:"format"`
	Device    string    `json:"device"`
	Language  string    `json:"language"`
	Task      string    `json:"task"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	CreatedAt time.Time `json:"created_at"`

	OutputPath string  `json:"output_path,omitempty"`
	OutputName string  `json:"output_name,omitempty"`
	Seconds    float64 `json:"processing_seconds,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Advance moves the record to status and raises progress. Progress is
// clamped so it never decreases within an execution attempt, even when a
// model-load broadcast already pushed a still-queued job past the value a
// later stage would set.
func (j *Job) Advance(status JobStatus, progress int) {
	j.Status = status
	if progress > j.Progress {
		j.Progress = progress
	}
}

// Fail marks the record terminally errored.
func (j *Job) Fail(msg string) {
	j.Status = StatusError
	j.Error = msg
}

// ResetForRetry returns the record to the queued state for resubmission.
// This is the only place progress is allowed to drop.
func (j *Job) ResetForRetry(filename string) {
	if filename != "" {
		j.Filename = filename
	}
	j.Status = StatusQueued
	j.Progress = 0
	j.Error = ""
}

// Task is the queue payload: everything the worker needs to execute
// without re-reading the repository. The temp dir is owned by the task
// until worker cleanup.
type Task struct {
	JobID     uuid.UUID
	InputPath string
	TempDir   string
	Filename  string
	Model     string
	Format    string
	Device    string
	Language  string
	Kind      string
}
