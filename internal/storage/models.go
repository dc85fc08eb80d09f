package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// RoleProfile is the user's current-role record, maintained outside the
// career goals form.
type RoleProfile struct {
	UserID      string
	CurrentRole string
	Experience  string
	UpdatedAt   time.Time
}

// Analysis run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

type AnalysisRun struct {
	ID         string
	UserID     string
	Status     string // "running", "succeeded", "failed"
	TargetRole string
	LastError  string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
}
