package taskmgr

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"voiceclone/internal/model"
)

var (
	ErrTaskNotFound = fmt.Errorf("task not found")
	ErrTaskFinished = fmt.Errorf("task already finished")
)

// Tracker owns the in-memory task map. All reads and writes go through it;
// the map is never handed out, and Get returns a value snapshot so a poll
// never observes a half-written record.
type Tracker struct {
	mu    sync.Mutex
	tasks map[string]*model.Task
}

func NewTracker() *Tracker {
	return &Tracker{
		tasks: make(map[string]*model.Task),
	}
}

// Create inserts a new pending task and returns its snapshot.
func (tr *Tracker) Create(message string) model.Task {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	now := time.Now()
	task := &model.Task{
		ID:        uuid.New().String(),
		Status:    model.StatusPending,
		Progress:  0,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tr.tasks[task.ID] = task
	return *task
}

// Update overwrites status, progress and message of a non-terminal task.
// Progress is clamped to [0,100]; within that range values are trusted as
// supplied by the engine.
func (tr *Tracker) Update(id string, status model.TaskStatus, progress int, message string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	task, ok := tr.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if task.Status.Terminal() {
		return ErrTaskFinished
	}
	task.Status = status
	task.Progress = clamp(progress)
	task.Message = message
	task.UpdatedAt = time.Now()
	return nil
}

// Complete marks a task completed and stores the generation result.
func (tr *Tracker) Complete(id string, result *model.Generation) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	task, ok := tr.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if task.Status.Terminal() {
		return ErrTaskFinished
	}
	task.Status = model.StatusCompleted
	task.Progress = 100
	task.Message = "Completed successfully"
	task.Result = result
	task.UpdatedAt = time.Now()
	return nil
}

// Fail marks a task failed. Progress stays at its last reported value.
func (tr *Tracker) Fail(id string, errMsg string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	task, ok := tr.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if task.Status.Terminal() {
		return ErrTaskFinished
	}
	task.Status = model.StatusFailed
	task.Message = "Failed"
	task.Error = errMsg
	task.UpdatedAt = time.Now()
	return nil
}

// Get returns a snapshot of the task.
func (tr *Tracker) Get(id string) (model.Task, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	task, ok := tr.tasks[id]
	if !ok {
		return model.Task{}, ErrTaskNotFound
	}
	return *task, nil
}

// Delete removes the task record. Deleting a running task does not stop the
// underlying generation, it only drops the bookkeeping.
func (tr *Tracker) Delete(id string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if _, ok := tr.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	delete(tr.tasks, id)
	return nil
}

// Sweep removes terminal tasks not updated within maxAge and returns how
// many were removed.
func (tr *Tracker) Sweep(maxAge time.Duration) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, task := range tr.tasks {
		if task.Status.Terminal() && task.UpdatedAt.Before(cutoff) {
			delete(tr.tasks, id)
			removed++
		}
	}
	return removed
}

// Clear drops all tasks. Called on shutdown.
func (tr *Tracker) Clear() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.tasks = make(map[string]*model.Task)
}

func clamp(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}
