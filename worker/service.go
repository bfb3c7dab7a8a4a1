package worker

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jcooky/go-din"

	"github.com/SarthakJariwala/sqlsaber-web/engine"
	"github.com/SarthakJariwala/sqlsaber-web/errors"
	"github.com/SarthakJariwala/sqlsaber-web/internal/mylog"
	"github.com/SarthakJariwala/sqlsaber-web/streaming"
	"github.com/SarthakJariwala/sqlsaber-web/thread"
	"github.com/SarthakJariwala/sqlsaber-web/transcript"
	"github.com/SarthakJariwala/sqlsaber-web/userconfig"
)

type (
	// QueryEngine is the slice of engine.Engine the worker needs.
	QueryEngine interface {
		RunQuery(ctx context.Context, req engine.QueryRequest) (*engine.QueryResult, error)
	}

	// ConfigResolver resolves the runtime configuration for a thread.
	ConfigResolver interface {
		ResolveForThread(ctx context.Context, threadID uuid.UUID) (*userconfig.RuntimeConfig, error)
	}

	// Service executes queued query tasks. RunQuery never returns an error:
	// any failure ends up on the thread as an error status instead, so the
	// queue never retries a run whose outcome is already recorded.
	Service interface {
		RunQuery(ctx context.Context, task Task)
	}

	service struct {
		logger         *mylog.Logger
		threadManager  thread.Manager
		configResolver ConfigResolver
		engine         QueryEngine
	}
)

func NewService(logger *slog.Logger, threadManager thread.Manager, configResolver ConfigResolver, queryEngine QueryEngine) Service {
	return &service{
		logger:         logger,
		threadManager:  threadManager,
		configResolver: configResolver,
		engine:         queryEngine,
	}
}

func (s *service) RunQuery(ctx context.Context, task Task) {
	ok, err := s.threadManager.MarkRunning(ctx, task.ThreadID)
	if err != nil {
		// the thread is still pending; a redelivery can pick it up
		s.logger.Error("failed to mark thread running", "thread_id", task.ThreadID, mylog.Err(err))
		return
	}
	if !ok {
		// redelivered task; another worker already picked this execution up
		s.logger.Info("skip duplicate task", "thread_id", task.ThreadID)
		return
	}

	if err := s.execute(ctx, task); err != nil {
		s.logger.Error("query execution failed", "thread_id", task.ThreadID, mylog.Err(err))
		s.fail(ctx, task.ThreadID, err)
	}
}

func (s *service) execute(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic during query execution: %v", r)
		}
	}()

	found, err := s.threadManager.GetThreadByID(ctx, task.ThreadID)
	if err != nil {
		return err
	}

	history, err := transcript.Decode(found.Content)
	if err != nil {
		return err
	}

	config, err := s.configResolver.ResolveForThread(ctx, task.ThreadID)
	if err != nil {
		return err
	}

	handler := streaming.NewHandler(task.ThreadID, s.threadManager)

	result, err := s.engine.RunQuery(ctx, engine.QueryRequest{
		Prompt:   task.Prompt,
		History:  history,
		Database: config.DatabaseConnection,
		Model:    config.ModelName,
		APIKey:   config.APIKey,
		Memory:   config.Memory,
		Sink:     handler,
	})
	if err != nil {
		return err
	}

	if err := handler.Flush(ctx); err != nil {
		return err
	}

	content, err := transcript.Encode(result.Messages)
	if err != nil {
		return err
	}

	return s.threadManager.Complete(ctx, task.ThreadID, content)
}

func (s *service) fail(ctx context.Context, threadID uuid.UUID, cause error) {
	if err := s.threadManager.Fail(ctx, threadID, cause.Error()); err != nil {
		s.logger.Error("failed to record thread error", "thread_id", threadID, mylog.Err(err))
	}
}

func init() {
	din.RegisterT(func(c *din.Container) (Service, error) {
		logger, err := din.Get[*slog.Logger](c, mylog.Key)
		if err != nil {
			return nil, err
		}

		return NewService(
			logger,
			din.MustGetT[thread.Manager](c),
			din.MustGetT[userconfig.Service](c),
			din.MustGetT[*engine.Engine](c),
		), nil
	})
}
