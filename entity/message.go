package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type MessageType string

const (
	MessageTypeUser       MessageType = "user"
	MessageTypeAssistant  MessageType = "assistant"
	MessageTypeThinking   MessageType = "thinking"
	MessageTypeToolCall   MessageType = "tool_call"
	MessageTypeToolResult MessageType = "tool_result"
)

// MessageContent is the typed payload of a message. Which fields are set
// depends on the message type: user/assistant/thinking carry Text, tool_call
// carries ToolName+ToolArgs, tool_result carries ToolName+Result.
type MessageContent struct {
	Text     string         `json:"text,omitempty"`
	ToolName string         `json:"tool_name,omitempty"`
	ToolArgs datatypes.JSON `json:"tool_args,omitempty"`
	Result   datatypes.JSON `json:"result,omitempty"`
}

// Message is one persisted unit of conversation content. Messages are
// append-only; the auto-increment ID doubles as the ordering key for
// reconstruction and incremental polling.
type Message struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ThreadID uuid.UUID `gorm:"type:uuid;index:idx_message_thread"`
	Thread   Thread    `gorm:"foreignKey:ThreadID"`

	Type    MessageType
	Content datatypes.JSONType[MessageContent]
}
