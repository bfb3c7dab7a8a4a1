package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SarthakJariwala/sqlsaber-web/internal/mylog"
)

func TestGuardReadOnly(t *testing.T) {
	for _, tc := range []struct {
		name    string
		query   string
		allowed bool
	}{
		{"select", "SELECT * FROM users", true},
		{"select lowercase", "select count(*) from orders", true},
		{"with cte", "WITH t AS (SELECT 1) SELECT * FROM t", true},
		{"explain", "EXPLAIN SELECT * FROM users", true},
		{"insert", "INSERT INTO users VALUES (1)", false},
		{"update", "UPDATE users SET name = 'x'", false},
		{"delete with whitespace", "  \n DELETE FROM users", false},
		{"drop", "DROP TABLE users", false},
		{"piggybacked write", "SELECT 1; DROP TABLE users", false},
		{"truncate mixed case", "TrUnCaTe users", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := guardReadOnly(tc.query)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestInputSchemaOf(t *testing.T) {
	schema, err := inputSchemaOf[ExecuteSQLRequest]()
	require.NoError(t, err)

	assert.Equal(t, "object", schema["type"])

	properties, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, properties, "query")
	assert.Contains(t, properties, "limit")

	required, ok := schema["required"].([]any)
	require.True(t, ok)
	assert.Contains(t, required, "query")
}

func TestManagerRegistry(t *testing.T) {
	m := &manager{
		logger: mylog.NewLogger("debug", "default"),
		tools:  make(map[string]*nativeTool),
	}

	require.NoError(t, registerLocalTool(m, "echo", "Echo the input back.",
		func(ctx context.Context, input ListTablesRequest) (string, error) {
			return input.Schema, nil
		},
	))
	require.NoError(t, registerLocalTool(m, "noop", "Do nothing.",
		func(ctx context.Context, input ListTablesRequest) (string, error) {
			return "", nil
		},
	))

	defs := m.GetTools()
	require.Len(t, defs, 2)
	assert.Equal(t, "echo", defs[0].Name)
	assert.Equal(t, "noop", defs[1].Name)

	result, err := m.CallTool(context.TODO(), "echo", json.RawMessage(`{"schema":"public"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `"public"`, string(result))

	_, err = m.CallTool(context.TODO(), "missing", nil)
	assert.Error(t, err)
}
