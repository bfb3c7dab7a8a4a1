package tool

import (
	"context"
	"regexp"
	"strings"

	"github.com/SarthakJariwala/sqlsaber-web/errors"
)

type (
	ListTablesRequest struct {
		Schema string `json:"schema,omitempty" jsonschema:"description=Optional schema name to filter by. Lists all schemas when omitted"`
	}

	TableInfo struct {
		Schema string `json:"schema"`
		Name   string `json:"name"`
		Type   string `json:"type"`
	}

	IntrospectSchemaRequest struct {
		TablePattern string `json:"table_pattern,omitempty" jsonschema:"description=Optional SQL LIKE pattern to match table names, e.g. 'public.users' or '%orders%'"`
	}

	ColumnInfo struct {
		Table    string `json:"table"`
		Column   string `json:"column"`
		DataType string `json:"data_type"`
		Nullable bool   `json:"nullable"`
		Default  string `json:"default,omitempty"`
	}

	ExecuteSQLRequest struct {
		Query string `json:"query" jsonschema:"required,description=SQL SELECT query to execute"`
		Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum number of rows to return. Defaults to 100"`
	}

	ExecuteSQLResponse struct {
		Columns   []string         `json:"columns"`
		Rows      []map[string]any `json:"rows"`
		RowCount  int              `json:"row_count"`
		Truncated bool             `json:"truncated"`
	}
)

const defaultRowLimit = 100

var writeStmtRe = regexp.MustCompile(`(?is)^\s*(insert|update|delete|drop|create|alter|truncate|grant|revoke|copy|vacuum)\b`)

func (m *manager) registerSQLTools() error {
	if err := registerLocalTool(m, "list_tables",
		"List tables in the connected database, grouped by schema.",
		m.listTables,
	); err != nil {
		return err
	}

	if err := registerLocalTool(m, "introspect_schema",
		"Inspect column definitions for tables matching an optional pattern.",
		m.introspectSchema,
	); err != nil {
		return err
	}

	return registerLocalTool(m, "execute_sql",
		"Execute a read-only SQL query and return the resulting rows.",
		m.executeSQL,
	)
}

func (m *manager) listTables(ctx context.Context, req ListTablesRequest) ([]TableInfo, error) {
	query := `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
	`
	args := []any{}
	if req.Schema != "" {
		query += " AND table_schema = $1"
		args = append(args, req.Schema)
	}
	query += " ORDER BY table_schema, table_name"

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list tables")
	}
	defer rows.Close()

	tables := []TableInfo{}
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Schema, &t.Name, &t.Type); err != nil {
			return nil, errors.Wrapf(err, "failed to scan table row")
		}
		tables = append(tables, t)
	}

	return tables, errors.WithStack(rows.Err())
}

func (m *manager) introspectSchema(ctx context.Context, req IntrospectSchemaRequest) ([]ColumnInfo, error) {
	query := `
		SELECT table_schema || '.' || table_name,
		       column_name, data_type, is_nullable, COALESCE(column_default, '')
		FROM information_schema.columns
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
	`
	args := []any{}
	if req.TablePattern != "" {
		query += " AND table_schema || '.' || table_name LIKE $1"
		args = append(args, req.TablePattern)
	}
	query += " ORDER BY table_schema, table_name, ordinal_position"

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to introspect schema")
	}
	defer rows.Close()

	columns := []ColumnInfo{}
	for rows.Next() {
		var (
			c        ColumnInfo
			nullable string
		)
		if err := rows.Scan(&c.Table, &c.Column, &c.DataType, &nullable, &c.Default); err != nil {
			return nil, errors.Wrapf(err, "failed to scan column row")
		}
		c.Nullable = strings.EqualFold(nullable, "YES")
		columns = append(columns, c)
	}

	return columns, errors.WithStack(rows.Err())
}

func (m *manager) executeSQL(ctx context.Context, req ExecuteSQLRequest) (*ExecuteSQLResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "query must not be empty")
	}
	if err := guardReadOnly(req.Query); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultRowLimit
	}

	rows, err := m.db.QueryContext(ctx, req.Query)
	if err != nil {
		return nil, errors.Wrapf(err, "query failed")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read result columns")
	}

	resp := &ExecuteSQLResponse{
		Columns: columns,
		Rows:    []map[string]any{},
	}

	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if len(resp.Rows) >= limit {
			resp.Truncated = true
			break
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, errors.Wrapf(err, "failed to scan result row")
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		resp.Rows = append(resp.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to iterate result rows")
	}

	resp.RowCount = len(resp.Rows)

	return resp, nil
}

// guardReadOnly rejects statements that would modify the database. The
// engine only ever needs to read, so anything else is a model mistake.
func guardReadOnly(query string) error {
	for _, stmt := range strings.Split(query, ";") {
		if writeStmtRe.MatchString(stmt) {
			return errors.Wrapf(errors.ErrInvalidParams, "only read-only queries are allowed")
		}
	}
	return nil
}
