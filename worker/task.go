package worker

import "github.com/google/uuid"

// Task is one queued query execution. The prompt is carried in the task
// rather than re-read from the thread so a requeued thread cannot race with
// its own follow-up.
type Task struct {
	ThreadID uuid.UUID
	Prompt   string
}
