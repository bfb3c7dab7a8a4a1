package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jcooky/go-din"

	"github.com/SarthakJariwala/sqlsaber-web/errors"
	"github.com/SarthakJariwala/sqlsaber-web/internal/mylog"
	"github.com/SarthakJariwala/sqlsaber-web/tool"
)

const ProviderAnthropic = "anthropic"

type (
	// QueryRequest carries everything one query execution needs. Sink may be
	// nil when the caller does not care about intermediate events.
	QueryRequest struct {
		Prompt   string
		History  []Conversation
		Database string
		Model    string
		APIKey   string
		Memory   string
		Sink     EventSink
	}

	QueryResult struct {
		Messages []Conversation
	}

	Engine struct {
		logger         *mylog.Logger
		newToolManager tool.Factory
	}
)

func NewEngine(logger *slog.Logger, newToolManager tool.Factory) *Engine {
	return &Engine{
		logger:         logger,
		newToolManager: newToolManager,
	}
}

// ParseModelName splits a "provider:model" identifier. A bare model name
// defaults to the anthropic provider.
func ParseModelName(name string) (provider string, model string, err error) {
	if strings.TrimSpace(name) == "" {
		return "", "", errors.WithStack(errors.ErrMissingModelIdentifier)
	}

	provider, model, found := strings.Cut(name, ":")
	if !found {
		return ProviderAnthropic, name, nil
	}
	if provider == "" || model == "" {
		return "", "", errors.Wrapf(errors.ErrMissingModelIdentifier, "invalid model identifier %q", name)
	}

	return provider, model, nil
}

func init() {
	din.RegisterT(func(c *din.Container) (*Engine, error) {
		logger, err := din.Get[*slog.Logger](c, mylog.Key)
		if err != nil {
			return nil, err
		}

		return NewEngine(logger, func(ctx context.Context, connectionString string) (tool.Manager, error) {
			return tool.NewToolManager(ctx, logger, connectionString)
		}), nil
	})
}
