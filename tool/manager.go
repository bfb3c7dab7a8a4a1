package tool

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	_ "github.com/lib/pq"

	"github.com/SarthakJariwala/sqlsaber-web/errors"
	"github.com/SarthakJariwala/sqlsaber-web/internal/mylog"
)

type (
	Manager interface {
		GetTools() []Definition
		CallTool(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
		Close()
	}

	// Factory opens a tool manager bound to one database connection. Each
	// query execution gets its own manager so connections never outlive the
	// run that needed them.
	Factory func(ctx context.Context, connectionString string) (Manager, error)

	manager struct {
		logger *mylog.Logger

		db    *sql.DB
		tools map[string]*nativeTool
		order []string
		mtx   sync.Mutex
	}
)

var (
	_ Manager = (*manager)(nil)
)

func NewToolManager(ctx context.Context, logger *slog.Logger, connectionString string) (Manager, error) {
	if connectionString == "" {
		return nil, errors.WithStack(errors.ErrEmptyConnectionString)
	}
	if !strings.HasPrefix(connectionString, "postgres://") && !strings.HasPrefix(connectionString, "postgresql://") {
		return nil, errors.Errorf("unsupported database scheme in connection string")
	}

	sqlDB, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrapf(err, "failed to connect to database")
	}

	s := &manager{
		logger: logger,
		db:     sqlDB,
		tools:  make(map[string]*nativeTool),
	}

	if err := s.registerSQLTools(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func (m *manager) register(t *nativeTool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if _, ok := m.tools[t.def.Name]; !ok {
		m.order = append(m.order, t.def.Name)
	}
	m.tools[t.def.Name] = t
}

func (m *manager) GetTools() []Definition {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	defs := make([]Definition, 0, len(m.order))
	for _, name := range m.order {
		defs = append(defs, m.tools[name].def)
	}

	return defs
}

func (m *manager) CallTool(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	m.mtx.Lock()
	t, ok := m.tools[name]
	m.mtx.Unlock()
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "tool %q is not registered", name)
	}

	m.logger.Debug("call tool", "name", name, "args", string(args))

	return t.call(ctx, args)
}

func (m *manager) Close() {
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			m.logger.Warn("failed to close database", mylog.Err(err))
		}
		m.db = nil
	}
}
