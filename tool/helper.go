package tool

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/SarthakJariwala/sqlsaber-web/errors"
)

func inputSchemaOf[In any]() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}

	var input In
	schema := reflector.Reflect(&input)
	schema.Version = ""

	schemaJson, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal input schema")
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJson, &schemaMap); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal input schema")
	}

	return schemaMap, nil
}

func registerLocalTool[In any, Out any](m *manager, name, description string, fn func(ctx context.Context, input In) (Out, error)) error {
	schema, err := inputSchemaOf[In]()
	if err != nil {
		return err
	}

	m.register(&nativeTool{
		def: Definition{
			Name:        name,
			Description: description,
			InputSchema: schema,
		},
		call: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			var input In
			if len(args) > 0 {
				if err := json.Unmarshal(args, &input); err != nil {
					return nil, errors.Wrapf(errors.ErrInvalidParams, "failed to decode arguments for %s", name)
				}
			}

			out, err := fn(ctx, input)
			if err != nil {
				return nil, err
			}

			result, err := json.Marshal(out)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to encode result of %s", name)
			}

			return result, nil
		},
	})

	return nil
}
