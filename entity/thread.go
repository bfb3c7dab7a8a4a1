package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ThreadStatus string

const (
	ThreadStatusPending   ThreadStatus = "pending"
	ThreadStatusRunning   ThreadStatus = "running"
	ThreadStatusCompleted ThreadStatus = "completed"
	ThreadStatusError     ThreadStatus = "error"
)

// Terminal reports whether a new follow-up prompt may be accepted. A thread
// never leaves running except through completed or error.
func (s ThreadStatus) Terminal() bool {
	return s == ThreadStatusCompleted || s == ThreadStatusError
}

// Thread is one persisted conversation between a user and the query engine.
// Content holds the full serialized transcript after the first completed
// query and is re-fed to the engine on continuation.
type Thread struct {
	ID        uuid.UUID `gorm:"type:uuid;primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	UserID uint `gorm:"index:idx_thread_user"`
	User   User

	DatabaseConnectionID *uint
	DatabaseConnection   *UserDatabaseConnection
	ModelConfigID        *uint
	ModelConfig          *UserModelConfig

	Title        string
	Status       ThreadStatus `gorm:"default:pending"`
	Content      datatypes.JSON
	ErrorMessage string

	Messages []Message `gorm:"foreignKey:ThreadID"`
}

func (t *Thread) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
