package models

import "time"

// CommitRecord is one auto-commit made by the coordinator.
type CommitRecord struct {
	ID         string
	Path       string // repo-relative path of the committed file
	CommitHash string
	Message    string
	CreatedAt  time.Time
}
