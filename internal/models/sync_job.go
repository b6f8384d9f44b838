package models

import "time"

// JobKind is the verb passed to the sync script.
type JobKind string

const (
	JobKindPush JobKind = "push"
	JobKindPull JobKind = "pull"
)

// SyncJob records one invocation of the external sync script.
type SyncJob struct {
	ID         string
	Kind       JobKind
	ExitCode   int
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Succeeded reports whether the job finished with exit code 0.
func (j *SyncJob) Succeeded() bool {
	return j.FinishedAt != nil && j.ExitCode == 0
}
