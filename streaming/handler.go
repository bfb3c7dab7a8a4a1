// Package streaming turns the engine's event stream into persisted thread
// messages. Text and reasoning fragments are coalesced into whole messages;
// tool traffic is written through immediately so the frontend can show
// progress while a query runs.
package streaming

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/SarthakJariwala/sqlsaber-web/engine"
	"github.com/SarthakJariwala/sqlsaber-web/entity"
)

type (
	// MessageWriter is the part of thread.Manager the handler needs.
	MessageWriter interface {
		CreateMessage(ctx context.Context, threadID uuid.UUID, msgType entity.MessageType, content entity.MessageContent) (*entity.Message, error)
	}

	// Handler buffers streamed content for one thread. It is not safe for
	// concurrent use; each query execution owns its own handler.
	Handler struct {
		threadID uuid.UUID
		writer   MessageWriter

		buffer strings.Builder
		kind   engine.PartKind
	}
)

var _ engine.EventSink = (*Handler)(nil)

func NewHandler(threadID uuid.UUID, writer MessageWriter) *Handler {
	return &Handler{
		threadID: threadID,
		writer:   writer,
	}
}

func (h *Handler) OnEvent(ctx context.Context, event engine.StreamEvent) error {
	switch event := event.(type) {
	case engine.PartStartEvent:
		return h.onPartStart(ctx, event)
	case engine.PartDeltaEvent:
		return h.onPartDelta(event)
	case engine.PartEndEvent:
		return h.Flush(ctx)
	case engine.ToolCallEvent:
		return h.onToolCall(ctx, event)
	case engine.ToolResultEvent:
		return h.onToolResult(ctx, event)
	}

	return nil
}

func (h *Handler) onPartStart(ctx context.Context, event engine.PartStartEvent) error {
	if !bufferedKind(event.Kind) {
		return nil
	}

	// a new part of a different kind closes out whatever was buffered
	if h.kind != "" && h.kind != event.Kind {
		if err := h.Flush(ctx); err != nil {
			return err
		}
	}

	h.kind = event.Kind
	h.buffer.WriteString(event.Content)

	return nil
}

func (h *Handler) onPartDelta(event engine.PartDeltaEvent) error {
	if !bufferedKind(event.Kind) {
		return nil
	}

	h.buffer.WriteString(event.Delta)

	return nil
}

func (h *Handler) onToolCall(ctx context.Context, event engine.ToolCallEvent) error {
	// narration that led up to the call must land before it
	if err := h.Flush(ctx); err != nil {
		return err
	}

	_, err := h.writer.CreateMessage(ctx, h.threadID, entity.MessageTypeToolCall, entity.MessageContent{
		ToolName: event.ToolName,
		ToolArgs: datatypes.JSON(event.Args),
	})

	return err
}

func (h *Handler) onToolResult(ctx context.Context, event engine.ToolResultEvent) error {
	_, err := h.writer.CreateMessage(ctx, h.threadID, entity.MessageTypeToolResult, entity.MessageContent{
		ToolName: event.ToolName,
		Result:   datatypes.JSON(event.Result),
	})

	return err
}

// Flush writes the buffered content as one message and resets the buffer.
// Calling it with nothing buffered is a no-op, so the terminal flush after a
// stream ends is safe even when the last part already flushed itself.
func (h *Handler) Flush(ctx context.Context) error {
	if h.buffer.Len() == 0 || h.kind == "" {
		return nil
	}

	msgType := entity.MessageTypeAssistant
	if h.kind == engine.PartKindReasoning {
		msgType = entity.MessageTypeThinking
	}

	if _, err := h.writer.CreateMessage(ctx, h.threadID, msgType, entity.MessageContent{
		Text: h.buffer.String(),
	}); err != nil {
		return err
	}

	h.buffer.Reset()
	h.kind = ""

	return nil
}

func bufferedKind(kind engine.PartKind) bool {
	return kind == engine.PartKindText || kind == engine.PartKindReasoning
}
