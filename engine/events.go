package engine

import (
	"context"
	"encoding/json"
)

type PartKind string

const (
	PartKindText      PartKind = "text"
	PartKindReasoning PartKind = "reasoning"
	PartKindOther     PartKind = "other"
)

type (
	// StreamEvent is the closed set of events an Engine emits while a query
	// runs. Consumers switch over the concrete types; unknown events must be
	// treated as no-ops so new kinds can be added without breaking them.
	StreamEvent interface {
		streamEvent()
	}

	// PartStartEvent opens a new content unit. Content carries any text the
	// provider delivered together with the opening frame.
	PartStartEvent struct {
		Kind    PartKind
		Content string
	}

	// PartDeltaEvent appends an incremental fragment to the open unit. This
	// is the high-frequency path.
	PartDeltaEvent struct {
		Kind  PartKind
		Delta string
	}

	// PartEndEvent closes the open content unit.
	PartEndEvent struct{}

	// ToolCallEvent reports that the model requested a tool invocation.
	ToolCallEvent struct {
		ToolName string
		Args     json.RawMessage
	}

	// ToolResultEvent reports the outcome of a tool invocation.
	ToolResultEvent struct {
		ToolName string
		Result   json.RawMessage
	}
)

func (PartStartEvent) streamEvent()  {}
func (PartDeltaEvent) streamEvent()  {}
func (PartEndEvent) streamEvent()    {}
func (ToolCallEvent) streamEvent()   {}
func (ToolResultEvent) streamEvent() {}

type (
	// EventSink consumes the event stream of one query execution. OnEvent is
	// called synchronously and in order; returning an error aborts the query.
	EventSink interface {
		OnEvent(ctx context.Context, event StreamEvent) error
	}

	EventSinkFunc func(ctx context.Context, event StreamEvent) error
)

func (f EventSinkFunc) OnEvent(ctx context.Context, event StreamEvent) error {
	return f(ctx, event)
}
