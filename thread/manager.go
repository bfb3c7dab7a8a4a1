package thread

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jcooky/go-din"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SarthakJariwala/sqlsaber-web/entity"
	"github.com/SarthakJariwala/sqlsaber-web/errors"
	"github.com/SarthakJariwala/sqlsaber-web/internal/db"
	"github.com/SarthakJariwala/sqlsaber-web/internal/mylog"
	"github.com/SarthakJariwala/sqlsaber-web/internal/stringutils"
)

const (
	maxTitleLen        = 100
	maxErrorMessageLen = 1000
)

type (
	Manager interface {
		CreateThread(ctx context.Context, userID uint, prompt string, databaseConnectionID, modelConfigID *uint) (*entity.Thread, error)
		GetThreadByID(ctx context.Context, threadID uuid.UUID) (*entity.Thread, error)
		GetThreads(ctx context.Context, userID uint) ([]entity.Thread, error)
		CreateMessage(ctx context.Context, threadID uuid.UUID, msgType entity.MessageType, content entity.MessageContent) (*entity.Message, error)
		GetMessages(ctx context.Context, threadID uuid.UUID, afterID uint) ([]entity.Message, error)
		GetNumMessages(ctx context.Context, threadID uuid.UUID) (int64, error)
		MarkRunning(ctx context.Context, threadID uuid.UUID) (bool, error)
		Requeue(ctx context.Context, threadID uuid.UUID, databaseConnectionID, modelConfigID *uint) (bool, error)
		Complete(ctx context.Context, threadID uuid.UUID, content datatypes.JSON) error
		Fail(ctx context.Context, threadID uuid.UUID, message string) error
	}

	manager struct {
		logger *mylog.Logger
		db     *gorm.DB
	}
)

func (m *manager) CreateThread(ctx context.Context, userID uint, prompt string, databaseConnectionID, modelConfigID *uint) (*entity.Thread, error) {
	_, tx := db.OpenSession(ctx, m.db)

	thread := entity.Thread{
		UserID:               userID,
		Title:                stringutils.Truncate(prompt, maxTitleLen),
		Status:               entity.ThreadStatusPending,
		DatabaseConnectionID: databaseConnectionID,
		ModelConfigID:        modelConfigID,
	}
	if err := tx.Create(&thread).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to create thread")
	}

	m.logger.Debug("thread created", "thread_id", thread.ID, "user_id", userID)

	return &thread, nil
}

func (m *manager) GetThreadByID(ctx context.Context, threadID uuid.UUID) (*entity.Thread, error) {
	_, tx := db.OpenSession(ctx, m.db)

	var thread entity.Thread
	if err := tx.First(&thread, "id = ?", threadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(errors.ErrNotFound, "thread %s", threadID)
		}
		return nil, errors.Wrapf(err, "failed to find thread")
	}

	return &thread, nil
}

func (m *manager) GetThreads(ctx context.Context, userID uint) ([]entity.Thread, error) {
	_, tx := db.OpenSession(ctx, m.db)

	var threads []entity.Thread
	if err := tx.Where("user_id = ?", userID).Order("created_at DESC").Find(&threads).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to list threads")
	}

	return threads, nil
}

func (m *manager) CreateMessage(ctx context.Context, threadID uuid.UUID, msgType entity.MessageType, content entity.MessageContent) (*entity.Message, error) {
	_, tx := db.OpenSession(ctx, m.db)

	message := entity.Message{
		ThreadID: threadID,
		Type:     msgType,
		Content:  datatypes.NewJSONType(content),
	}
	if err := tx.Create(&message).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to create message")
	}

	return &message, nil
}

// GetMessages returns a thread's messages in insertion order, skipping
// anything at or below afterID. Pass 0 to read from the beginning; the
// frontend polls with the last id it has seen.
func (m *manager) GetMessages(ctx context.Context, threadID uuid.UUID, afterID uint) ([]entity.Message, error) {
	_, tx := db.OpenSession(ctx, m.db)

	var messages []entity.Message
	if err := tx.
		Where("thread_id = ? AND id > ?", threadID, afterID).
		Order("id").
		Find(&messages).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to list messages")
	}

	return messages, nil
}

func (m *manager) GetNumMessages(ctx context.Context, threadID uuid.UUID) (int64, error) {
	_, tx := db.OpenSession(ctx, m.db)

	var count int64
	if err := tx.Model(&entity.Message{}).Where("thread_id = ?", threadID).Count(&count).Error; err != nil {
		return 0, errors.Wrapf(err, "failed to count messages")
	}

	return count, nil
}

// MarkRunning transitions pending to running. Returns false when the thread
// was not pending, which is how a redelivered task discovers it already ran.
func (m *manager) MarkRunning(ctx context.Context, threadID uuid.UUID) (bool, error) {
	_, tx := db.OpenSession(ctx, m.db)

	res := tx.Model(&entity.Thread{}).
		Where("id = ? AND status = ?", threadID, entity.ThreadStatusPending).
		Update("status", entity.ThreadStatusRunning)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "failed to mark thread running")
	}

	return res.RowsAffected > 0, nil
}

// Requeue moves a terminal thread back to pending for a follow-up prompt,
// optionally rebinding its database connection or model. Returns false when
// the thread is still pending or running.
func (m *manager) Requeue(ctx context.Context, threadID uuid.UUID, databaseConnectionID, modelConfigID *uint) (bool, error) {
	_, tx := db.OpenSession(ctx, m.db)

	values := map[string]any{
		"status": entity.ThreadStatusPending,
	}
	if databaseConnectionID != nil {
		values["database_connection_id"] = *databaseConnectionID
	}
	if modelConfigID != nil {
		values["model_config_id"] = *modelConfigID
	}

	res := tx.Model(&entity.Thread{}).
		Where("id = ? AND status IN ?", threadID, []entity.ThreadStatus{entity.ThreadStatusCompleted, entity.ThreadStatusError}).
		Updates(values)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "failed to requeue thread")
	}

	return res.RowsAffected > 0, nil
}

// Complete stores the final transcript and clears any error left over from a
// previous failed run.
func (m *manager) Complete(ctx context.Context, threadID uuid.UUID, content datatypes.JSON) error {
	_, tx := db.OpenSession(ctx, m.db)

	res := tx.Model(&entity.Thread{}).
		Where("id = ?", threadID).
		Updates(map[string]any{
			"status":        entity.ThreadStatusCompleted,
			"content":       content,
			"error_message": "",
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to complete thread")
	}

	return nil
}

func (m *manager) Fail(ctx context.Context, threadID uuid.UUID, message string) error {
	_, tx := db.OpenSession(ctx, m.db)

	res := tx.Model(&entity.Thread{}).
		Where("id = ?", threadID).
		Updates(map[string]any{
			"status":        entity.ThreadStatusError,
			"error_message": stringutils.Truncate(message, maxErrorMessageLen),
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to mark thread errored")
	}

	return nil
}

func init() {
	din.RegisterT(func(c *din.Container) (Manager, error) {
		logger, err := din.Get[*slog.Logger](c, mylog.Key)
		if err != nil {
			return nil, err
		}

		return &manager{
			logger: logger,
			db:     din.MustGet[*gorm.DB](c, db.Key),
		}, nil
	})
}
