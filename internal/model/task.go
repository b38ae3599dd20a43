package model

import "time"

type TaskStatus string

const (
	StatusPending      TaskStatus = "pending"
	StatusInitializing TaskStatus = "initializing"
	StatusGenerating   TaskStatus = "generating"
	StatusProcessing   TaskStatus = "processing"
	StatusCompleted    TaskStatus = "completed"
	StatusFailed       TaskStatus = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task tracks one asynchronous generation request from creation to its
// terminal state. Result is set only when completed, Error only when failed.
type Task struct {
	ID        string      `json:"id"`
	Status    TaskStatus  `json:"status"`
	Progress  int         `json:"progress"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Result    *Generation `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
}
