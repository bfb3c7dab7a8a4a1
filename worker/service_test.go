package worker_test

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jcooky/go-din"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/SarthakJariwala/sqlsaber-web/engine"
	"github.com/SarthakJariwala/sqlsaber-web/entity"
	"github.com/SarthakJariwala/sqlsaber-web/errors"
	"github.com/SarthakJariwala/sqlsaber-web/internal/db"
	"github.com/SarthakJariwala/sqlsaber-web/internal/mylog"
	"github.com/SarthakJariwala/sqlsaber-web/internal/mytesting"
	"github.com/SarthakJariwala/sqlsaber-web/thread"
	"github.com/SarthakJariwala/sqlsaber-web/transcript"
	"github.com/SarthakJariwala/sqlsaber-web/userconfig"
	"github.com/SarthakJariwala/sqlsaber-web/worker"
)

// scriptedEngine replays a fixed event sequence into the sink and returns a
// canned result, standing in for a live model run.
type scriptedEngine struct {
	events []engine.StreamEvent
	result *engine.QueryResult
	err    error
}

func (e *scriptedEngine) RunQuery(ctx context.Context, req engine.QueryRequest) (*engine.QueryResult, error) {
	for _, event := range e.events {
		if err := req.Sink.OnEvent(ctx, event); err != nil {
			return nil, err
		}
	}
	if e.err != nil {
		return nil, e.err
	}

	result := e.result
	if result == nil {
		result = &engine.QueryResult{}
	}
	messages := append([]engine.Conversation{}, req.History...)
	messages = append(messages, engine.Conversation{Role: engine.RoleUser, Text: req.Prompt})
	messages = append(messages, result.Messages...)

	return &engine.QueryResult{Messages: messages}, nil
}

type staticResolver struct {
	config *userconfig.RuntimeConfig
	err    error
}

func (r *staticResolver) ResolveForThread(context.Context, uuid.UUID) (*userconfig.RuntimeConfig, error) {
	return r.config, r.err
}

type WorkerServiceTestSuite struct {
	mytesting.Suite

	threadManager thread.Manager
	logger        *slog.Logger
	DB            *gorm.DB

	user entity.User
}

func (s *WorkerServiceTestSuite) SetupTest() {
	os.Setenv("ENV_TEST_FILE", "../.env.test")
	s.Suite.SetupTest()

	s.threadManager = din.MustGetT[thread.Manager](s.Container)
	s.logger = din.MustGet[*slog.Logger](s.Container, mylog.Key)
	s.DB = din.MustGet[*gorm.DB](s.Container, db.Key)

	s.user = entity.User{Email: "carol@example.com", Name: "Carol"}
	s.Require().NoError(s.DB.Save(&s.user).Error)
}

func (s *WorkerServiceTestSuite) newService(queryEngine worker.QueryEngine) worker.Service {
	resolver := &staticResolver{config: &userconfig.RuntimeConfig{
		DatabaseConnection: "postgres://localhost/test",
		ModelName:          "anthropic:claude-sonnet-4-5",
		APIKey:             "sk-ant-test",
	}}

	return worker.NewService(s.logger, s.threadManager, resolver, queryEngine)
}

func (s *WorkerServiceTestSuite) TestSuccessfulRun() {
	created, err := s.threadManager.CreateThread(s.Context, s.user.ID, "count the users", nil, nil)
	s.Require().NoError(err)

	queryEngine := &scriptedEngine{
		events: []engine.StreamEvent{
			engine.PartStartEvent{Kind: engine.PartKindText, Content: "There are "},
			engine.PartDeltaEvent{Kind: engine.PartKindText, Delta: "42 users."},
		},
		result: &engine.QueryResult{Messages: []engine.Conversation{
			{Role: engine.RoleAssistant, Text: "There are 42 users."},
		}},
	}

	s.newService(queryEngine).RunQuery(s.Context, worker.Task{ThreadID: created.ID, Prompt: "count the users"})

	found, err := s.threadManager.GetThreadByID(s.Context, created.ID)
	s.Require().NoError(err)
	s.Equal(entity.ThreadStatusCompleted, found.Status)
	s.Empty(found.ErrorMessage)

	// buffered text was flushed even though the stream never closed the part
	messages, err := s.threadManager.GetMessages(s.Context, created.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(messages, 1)
	s.Equal("There are 42 users.", messages[0].Content.Data().Text)

	history, err := transcript.Decode(found.Content)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(engine.RoleUser, history[0].Role)
	s.Equal("count the users", history[0].Text)
	s.Equal(engine.RoleAssistant, history[1].Role)
}

func (s *WorkerServiceTestSuite) TestFailureKeepsStreamedMessages() {
	created, err := s.threadManager.CreateThread(s.Context, s.user.ID, "count the users", nil, nil)
	s.Require().NoError(err)

	queryEngine := &scriptedEngine{
		events: []engine.StreamEvent{
			engine.PartStartEvent{Kind: engine.PartKindReasoning, Content: "checking schema"},
			engine.PartEndEvent{},
		},
		err: errors.New("connection reset by provider"),
	}

	s.newService(queryEngine).RunQuery(s.Context, worker.Task{ThreadID: created.ID, Prompt: "count the users"})

	found, err := s.threadManager.GetThreadByID(s.Context, created.ID)
	s.Require().NoError(err)
	s.Equal(entity.ThreadStatusError, found.Status)
	s.Contains(found.ErrorMessage, "connection reset")

	messages, err := s.threadManager.GetMessages(s.Context, created.ID, 0)
	s.Require().NoError(err)
	s.Require().Len(messages, 1)
	s.Equal(entity.MessageTypeThinking, messages[0].Type)
}

func (s *WorkerServiceTestSuite) TestFailureMessageIsTruncated() {
	created, err := s.threadManager.CreateThread(s.Context, s.user.ID, "hi", nil, nil)
	s.Require().NoError(err)

	queryEngine := &scriptedEngine{err: errors.New(strings.Repeat("x", 5000))}

	s.newService(queryEngine).RunQuery(s.Context, worker.Task{ThreadID: created.ID, Prompt: "hi"})

	found, err := s.threadManager.GetThreadByID(s.Context, created.ID)
	s.Require().NoError(err)
	s.Equal(entity.ThreadStatusError, found.Status)
	s.Len(found.ErrorMessage, 1000)
}

func (s *WorkerServiceTestSuite) TestDuplicateDeliveryIsNoOp() {
	created, err := s.threadManager.CreateThread(s.Context, s.user.ID, "hi", nil, nil)
	s.Require().NoError(err)

	ok, err := s.threadManager.MarkRunning(s.Context, created.ID)
	s.Require().NoError(err)
	s.Require().True(ok)

	queryEngine := &scriptedEngine{
		events: []engine.StreamEvent{
			engine.PartStartEvent{Kind: engine.PartKindText, Content: "should not appear"},
			engine.PartEndEvent{},
		},
	}

	s.newService(queryEngine).RunQuery(s.Context, worker.Task{ThreadID: created.ID, Prompt: "hi"})

	found, err := s.threadManager.GetThreadByID(s.Context, created.ID)
	s.Require().NoError(err)
	s.Equal(entity.ThreadStatusRunning, found.Status)

	messages, err := s.threadManager.GetMessages(s.Context, created.ID, 0)
	s.Require().NoError(err)
	s.Empty(messages)
}

func (s *WorkerServiceTestSuite) TestMarkRunningErrorLeavesThreadPending() {
	created, err := s.threadManager.CreateThread(s.Context, s.user.ID, "hi", nil, nil)
	s.Require().NoError(err)

	resolver := &staticResolver{config: &userconfig.RuntimeConfig{}}
	failing := markRunningFailsManager{s.threadManager}
	worker.NewService(s.logger, failing, resolver, &scriptedEngine{}).
		RunQuery(s.Context, worker.Task{ThreadID: created.ID, Prompt: "hi"})

	found, err := s.threadManager.GetThreadByID(s.Context, created.ID)
	s.Require().NoError(err)
	s.Equal(entity.ThreadStatusPending, found.Status)
	s.Empty(found.ErrorMessage)
}

type markRunningFailsManager struct {
	thread.Manager
}

func (markRunningFailsManager) MarkRunning(context.Context, uuid.UUID) (bool, error) {
	return false, errors.New("database is locked")
}

func (s *WorkerServiceTestSuite) TestPanicIsCapturedAsError() {
	created, err := s.threadManager.CreateThread(s.Context, s.user.ID, "hi", nil, nil)
	s.Require().NoError(err)

	s.newService(panickyEngine{}).RunQuery(s.Context, worker.Task{ThreadID: created.ID, Prompt: "hi"})

	found, err := s.threadManager.GetThreadByID(s.Context, created.ID)
	s.Require().NoError(err)
	s.Equal(entity.ThreadStatusError, found.Status)
	s.Contains(found.ErrorMessage, "panic")
}

type panickyEngine struct{}

func (panickyEngine) RunQuery(context.Context, engine.QueryRequest) (*engine.QueryResult, error) {
	panic("unexpected provider payload")
}

func TestWorkerService(t *testing.T) {
	suite.Run(t, new(WorkerServiceTestSuite))
}
