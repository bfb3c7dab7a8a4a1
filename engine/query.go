package engine

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/SarthakJariwala/sqlsaber-web/errors"
	"github.com/SarthakJariwala/sqlsaber-web/internal/mylog"
)

const defaultMaxTurns = 32

// RunQuery drives one query against the model until it stops requesting
// tools. Events are emitted to the request sink as the stream arrives; the
// returned result holds the full exchange including the prior history.
func (s *Engine) RunQuery(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	provider, modelName, err := ParseModelName(req.Model)
	if err != nil {
		return nil, err
	}
	if provider != ProviderAnthropic {
		return nil, errors.Wrapf(errors.ErrUnsupportedModelProvider, "provider %q", provider)
	}

	client, err := newAnthropicClient(req.APIKey)
	if err != nil {
		return nil, err
	}

	toolManager, err := s.newToolManager(ctx, req.Database)
	if err != nil {
		return nil, err
	}
	defer toolManager.Close()

	instructions, err := buildInstructions(req.Memory)
	if err != nil {
		return nil, err
	}

	defs := toolManager.GetTools()
	messages := convertHistory(req.History)
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)))

	assistant := Conversation{Role: RoleAssistant}

	for turn := 0; turn < defaultMaxTurns; turn++ {
		s.logger.Debug("run model turn", "model", modelName, "turn", turn)

		turnRes, err := s.runTurn(ctx, &client, buildMessageParams(modelName, instructions, messages, defs), req.Sink)
		if err != nil {
			return nil, err
		}

		assistant.Text = joinText(assistant.Text, turnRes.text)
		assistant.Thinking = joinText(assistant.Thinking, turnRes.thinking)

		if len(turnRes.toolCalls) == 0 {
			break
		}

		messages = append(messages, turnRes.message.ToParam())

		var resultBlocks []anthropic.ContentBlockParamUnion
		for _, call := range turnRes.toolCalls {
			if err := emit(ctx, req.Sink, ToolCallEvent{ToolName: call.Name, Args: call.Arguments}); err != nil {
				return nil, err
			}

			out, callErr := toolManager.CallTool(ctx, call.Name, call.Arguments)
			isError := callErr != nil
			if callErr != nil {
				s.logger.Warn("tool call failed", "name", call.Name, mylog.Err(callErr))
				out, _ = json.Marshal(map[string]string{"error": callErr.Error()})
			}
			call.Result = out

			if err := emit(ctx, req.Sink, ToolResultEvent{ToolName: call.Name, Result: out}); err != nil {
				return nil, err
			}

			assistant.Actions = append(assistant.Actions, call)
			resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(call.ID, string(out), isError))
		}
		messages = append(messages, anthropic.NewUserMessage(resultBlocks...))
	}

	conversations := append(slices.Clone(req.History),
		Conversation{Role: RoleUser, Text: req.Prompt},
		assistant,
	)

	return &QueryResult{Messages: conversations}, nil
}

func joinText(existing, next string) string {
	if next == "" {
		return existing
	}
	if existing == "" {
		return next
	}

	return existing + "\n\n" + next
}
