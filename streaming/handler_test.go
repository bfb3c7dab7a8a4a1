package streaming_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SarthakJariwala/sqlsaber-web/engine"
	"github.com/SarthakJariwala/sqlsaber-web/entity"
	"github.com/SarthakJariwala/sqlsaber-web/streaming"
)

type recordedMessage struct {
	Type    entity.MessageType
	Content entity.MessageContent
}

type fakeWriter struct {
	messages []recordedMessage
}

func (w *fakeWriter) CreateMessage(_ context.Context, _ uuid.UUID, msgType entity.MessageType, content entity.MessageContent) (*entity.Message, error) {
	w.messages = append(w.messages, recordedMessage{Type: msgType, Content: content})
	return &entity.Message{ID: uint(len(w.messages))}, nil
}

func feed(t *testing.T, handler *streaming.Handler, events ...engine.StreamEvent) {
	t.Helper()
	for _, event := range events {
		require.NoError(t, handler.OnEvent(context.TODO(), event))
	}
}

func TestTextAccumulation(t *testing.T) {
	writer := &fakeWriter{}
	handler := streaming.NewHandler(uuid.New(), writer)

	feed(t, handler,
		engine.PartStartEvent{Kind: engine.PartKindText, Content: "Hello"},
		engine.PartDeltaEvent{Kind: engine.PartKindText, Delta: " wor"},
		engine.PartDeltaEvent{Kind: engine.PartKindText, Delta: "ld"},
		engine.PartEndEvent{},
	)

	require.Len(t, writer.messages, 1)
	assert.Equal(t, entity.MessageTypeAssistant, writer.messages[0].Type)
	assert.Equal(t, "Hello world", writer.messages[0].Content.Text)
}

func TestThinkingThenToolFlow(t *testing.T) {
	writer := &fakeWriter{}
	handler := streaming.NewHandler(uuid.New(), writer)

	args := json.RawMessage(`{"query":"SELECT 1"}`)
	result := json.RawMessage(`{"row_count":1}`)

	feed(t, handler,
		engine.PartStartEvent{Kind: engine.PartKindReasoning},
		engine.PartDeltaEvent{Kind: engine.PartKindReasoning, Delta: "let me check the schema"},
		engine.ToolCallEvent{ToolName: "execute_sql", Args: args},
		engine.ToolResultEvent{ToolName: "execute_sql", Result: result},
	)

	require.Len(t, writer.messages, 3)

	assert.Equal(t, entity.MessageTypeThinking, writer.messages[0].Type)
	assert.Equal(t, "let me check the schema", writer.messages[0].Content.Text)

	assert.Equal(t, entity.MessageTypeToolCall, writer.messages[1].Type)
	assert.Equal(t, "execute_sql", writer.messages[1].Content.ToolName)
	assert.JSONEq(t, string(args), string(writer.messages[1].Content.ToolArgs))

	assert.Equal(t, entity.MessageTypeToolResult, writer.messages[2].Type)
	assert.JSONEq(t, string(result), string(writer.messages[2].Content.Result))
}

func TestKindSwitchFlushesImplicitly(t *testing.T) {
	writer := &fakeWriter{}
	handler := streaming.NewHandler(uuid.New(), writer)

	feed(t, handler,
		engine.PartStartEvent{Kind: engine.PartKindReasoning, Content: "thinking..."},
		engine.PartStartEvent{Kind: engine.PartKindText, Content: "The answer is 42."},
		engine.PartEndEvent{},
	)

	require.Len(t, writer.messages, 2)
	assert.Equal(t, entity.MessageTypeThinking, writer.messages[0].Type)
	assert.Equal(t, "thinking...", writer.messages[0].Content.Text)
	assert.Equal(t, entity.MessageTypeAssistant, writer.messages[1].Type)
	assert.Equal(t, "The answer is 42.", writer.messages[1].Content.Text)
}

func TestOtherPartsIgnored(t *testing.T) {
	writer := &fakeWriter{}
	handler := streaming.NewHandler(uuid.New(), writer)

	feed(t, handler,
		engine.PartStartEvent{Kind: engine.PartKindText, Content: "done"},
		engine.PartEndEvent{},
		engine.PartStartEvent{Kind: engine.PartKindOther},
		engine.PartEndEvent{},
	)

	require.Len(t, writer.messages, 1)
	assert.Equal(t, "done", writer.messages[0].Content.Text)
}

func TestFlushIsIdempotent(t *testing.T) {
	writer := &fakeWriter{}
	handler := streaming.NewHandler(uuid.New(), writer)

	feed(t, handler,
		engine.PartStartEvent{Kind: engine.PartKindText, Content: "partial"},
	)

	require.NoError(t, handler.Flush(context.TODO()))
	require.NoError(t, handler.Flush(context.TODO()))

	require.Len(t, writer.messages, 1)
	assert.Equal(t, "partial", writer.messages[0].Content.Text)
}

func TestEmptyBufferNeverFlushes(t *testing.T) {
	writer := &fakeWriter{}
	handler := streaming.NewHandler(uuid.New(), writer)

	feed(t, handler, engine.PartEndEvent{})
	require.NoError(t, handler.Flush(context.TODO()))

	assert.Empty(t, writer.messages)
}
