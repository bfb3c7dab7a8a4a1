package errors

import (
	"fmt"
)

var (
	ErrNotFound      = fmt.Errorf("sqlsaber: not found")
	ErrInvalidParams = fmt.Errorf("sqlsaber: invalid params")
	ErrInternal      = fmt.Errorf("sqlsaber: internal error")

	// Configuration errors surfaced before a query is executed. They are
	// user-actionable: each one maps to something fixable in /settings.
	ErrNoActiveDatabase         = fmt.Errorf("sqlsaber: no active database connection configured")
	ErrNoActiveModel            = fmt.Errorf("sqlsaber: no active model configured")
	ErrEmptyConnectionString    = fmt.Errorf("sqlsaber: database connection string is empty")
	ErrMissingCredential        = fmt.Errorf("sqlsaber: API key is missing for the selected model")
	ErrMissingModelIdentifier   = fmt.Errorf("sqlsaber: model name is missing for the selected model")
	ErrUnsupportedModelProvider = fmt.Errorf("sqlsaber: unsupported model provider")

	// ErrMalformedHistory fails a thread continuation whose stored transcript
	// does not decode; a continuation must never run on corrupted context.
	ErrMalformedHistory = fmt.Errorf("sqlsaber: malformed message history")
)
