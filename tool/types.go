package tool

import (
	"context"
	"encoding/json"
)

type (
	// Definition describes a tool as advertised to the model provider.
	Definition struct {
		Name        string
		Description string
		InputSchema map[string]any
	}

	callFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

	nativeTool struct {
		def  Definition
		call callFunc
	}
)
