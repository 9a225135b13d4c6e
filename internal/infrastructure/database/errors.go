package database

import (
	"errors"
	"fmt"
)

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnection matches every *ConnectionError via errors.Is.
	ErrConnection = errors.New("database: connection error")

	// ErrNotConnected is wrapped when the manager is used before Connect
	// or after Disconnect.
	ErrNotConnected = errors.New("database: not connected")

	// ErrInvalidConnectionString is returned when a connection string cannot be parsed.
	ErrInvalidConnectionString = errors.New("database: invalid connection string")

	// ErrUnsupportedScheme is returned when no dialect is registered for a URL scheme.
	ErrUnsupportedScheme = errors.New("database: unsupported connection scheme")

	// ErrInvalidPoolOptions is returned when pool size or overflow are out of range.
	ErrInvalidPoolOptions = errors.New("database: invalid pool options")

	// ErrRegistryConflict is returned when a connection string is acquired
	// again with options that disagree with the existing manager.
	ErrRegistryConflict = errors.New("database: conflicting manager options")

	// ErrInvalidSchema is returned when schema files are malformed.
	ErrInvalidSchema = errors.New("database: invalid schema")
)

// ConnectionError reports a failure to reach or use the database backend.
//
// Every ConnectionError matches ErrConnection. The underlying driver error
// (or ErrNotConnected) is available through errors.Unwrap.
type ConnectionError struct {
	Op  string
	Msg string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("database %s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("database %s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrConnection.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

// errNotConnected builds the error returned when op runs without a connection.
func errNotConnected(op string) error {
	return &ConnectionError{
		Op:  op,
		Msg: "this instance is not connected to the database yet",
		Err: ErrNotConnected,
	}
}
