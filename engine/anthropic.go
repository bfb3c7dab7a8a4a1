package engine

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/SarthakJariwala/sqlsaber-web/errors"
	"github.com/SarthakJariwala/sqlsaber-web/tool"
)

const (
	defaultMaxTokens      = 8192
	defaultThinkingBudget = 2048
)

type turnResult struct {
	message   anthropic.Message
	text      string
	thinking  string
	toolCalls []Action
}

func newAnthropicClient(apiKey string) (anthropic.Client, error) {
	if apiKey == "" {
		return anthropic.Client{}, errors.WithStack(errors.ErrMissingCredential)
	}

	return anthropic.NewClient(option.WithAPIKey(apiKey)), nil
}

func buildMessageParams(modelName, instructions string, messages []anthropic.MessageParam, defs []tool.Definition) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		MaxTokens: defaultMaxTokens,
		Messages:  messages,
		Thinking:  anthropic.ThinkingConfigParamOfEnabled(defaultThinkingBudget),
	}

	params.System = append(params.System, anthropic.TextBlockParam{
		Text: instructions,
	})

	for _, def := range defs {
		params.Tools = append(params.Tools, convertTool(def))
	}

	return params
}

func convertTool(def tool.Definition) anthropic.ToolUnionParam {
	inputSchema := anthropic.ToolInputSchemaParam{
		Type:       "object",
		Properties: def.InputSchema["properties"],
	}

	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: inputSchema,
		},
	}
}

// convertHistory replays prior exchanges as provider messages. Reasoning text
// is not replayed; the provider requires signed thinking blocks and the
// signatures are not part of the stored history.
func convertHistory(history []Conversation) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	for _, conv := range history {
		switch conv.Role {
		case RoleUser:
			if conv.Text == "" {
				continue
			}
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(conv.Text)))
		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if conv.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(conv.Text))
			}
			for _, action := range conv.Actions {
				blocks = append(blocks, anthropic.NewToolUseBlock(action.ID, action.Arguments, action.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))

			var results []anthropic.ContentBlockParamUnion
			for _, action := range conv.Actions {
				results = append(results, anthropic.NewToolResultBlock(action.ID, string(action.Result), false))
			}
			if len(results) > 0 {
				messages = append(messages, anthropic.NewUserMessage(results...))
			}
		}
	}

	return messages
}

func (s *Engine) runTurn(ctx context.Context, client *anthropic.Client, params anthropic.MessageNewParams, sink EventSink) (*turnResult, error) {
	stream := client.Messages.NewStreaming(ctx, params)

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, errors.Wrapf(err, "failed to accumulate streaming message")
		}

		switch event := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			var start PartStartEvent
			switch event.ContentBlock.Type {
			case "text":
				start = PartStartEvent{Kind: PartKindText, Content: event.ContentBlock.Text}
			case "thinking":
				start = PartStartEvent{Kind: PartKindReasoning, Content: event.ContentBlock.Thinking}
			default:
				start = PartStartEvent{Kind: PartKindOther}
			}
			if err := emit(ctx, sink, start); err != nil {
				return nil, err
			}
		case anthropic.ContentBlockDeltaEvent:
			switch delta := event.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if err := emit(ctx, sink, PartDeltaEvent{Kind: PartKindText, Delta: delta.Text}); err != nil {
					return nil, err
				}
			case anthropic.ThinkingDelta:
				if err := emit(ctx, sink, PartDeltaEvent{Kind: PartKindReasoning, Delta: delta.Thinking}); err != nil {
					return nil, err
				}
			}
		case anthropic.ContentBlockStopEvent:
			if err := emit(ctx, sink, PartEndEvent{}); err != nil {
				return nil, err
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, errors.Wrapf(err, "streaming failed")
	}

	result := &turnResult{message: message}
	for _, content := range message.Content {
		switch block := content.AsAny().(type) {
		case anthropic.TextBlock:
			result.text += block.Text
		case anthropic.ThinkingBlock:
			result.thinking += block.Thinking
		case anthropic.ToolUseBlock:
			result.toolCalls = append(result.toolCalls, Action{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}

	return result, nil
}

func emit(ctx context.Context, sink EventSink, event StreamEvent) error {
	if sink == nil {
		return nil
	}

	return sink.OnEvent(ctx, event)
}
