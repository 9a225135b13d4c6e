package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
)

// Session is a transaction-scoped unit of work bound to one pooled connection.
//
// A Session is obtained from Manager.BeginSession (or Manager.WithSession)
// and is owned by a single caller until End is called. It is not safe for
// concurrent use.
type Session struct {
	id         uint64
	ctx        context.Context
	conn       *sqlx.Conn
	tx         *sqlx.Tx
	dialect    Dialect
	autocommit bool
	echo       bool
	logger     Logger

	release func()
	ended   atomic.Bool
}

// ID returns the session identifier, unique within one connected period.
func (s *Session) ID() uint64 {
	return s.id
}

// Dialect returns the dialect of the backend the session runs on.
func (s *Session) Dialect() Dialect {
	return s.dialect
}

// End finishes the session and returns the error the caller should propagate.
//
// With err == nil the transaction is committed (or discarded when the
// manager was built without autocommit), unless the context the session was
// opened with is done: then ctx.Err() takes the place of err. With err != nil the transaction
// is rolled back and err is returned unchanged; a rollback failure is joined
// after it rather than replacing it. In every case the session is removed from
// the manager's active set exactly once. Calling End again returns err untouched.
//
// Typical use:
//
//	sess, err := mgr.BeginSession(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { err = sess.End(err) }()
func (s *Session) End(err error) error {
	if !s.ended.CompareAndSwap(false, true) {
		return err
	}
	defer s.deregister()
	defer s.releaseConn()

	if err == nil && s.ctx != nil {
		err = s.ctx.Err()
	}

	if err != nil {
		if rbErr := s.rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back session %d: %w", s.id, rbErr))
		}
		return err
	}

	if !s.autocommit {
		// Work is left uncommitted; dropping the transaction releases the connection.
		if rbErr := s.rollback(); rbErr != nil {
			return fmt.Errorf("discarding session %d: %w", s.id, rbErr)
		}
		return nil
	}

	if cErr := s.tx.Commit(); cErr != nil {
		return fmt.Errorf("committing session %d: %w", s.id, cErr)
	}
	return nil
}

// Rollback discards the work done so far. The session stays registered
// until End; later statements fail with sql.ErrTxDone.
func (s *Session) Rollback() error {
	if err := s.rollback(); err != nil {
		return fmt.Errorf("rolling back session %d: %w", s.id, err)
	}
	return nil
}

// rollback ignores sql.ErrTxDone so an explicit Rollback followed by End is not an error.
func (s *Session) rollback() error {
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// releaseConn hands the connection back to the pool. The transaction must
// already be finished.
func (s *Session) releaseConn() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		s.logger.Warn("error releasing session connection", "session", s.id, "error", err)
	}
}

func (s *Session) deregister() {
	if s.release != nil {
		s.release()
	}
}

// ExecContext executes a statement that doesn't return rows.
func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.echoSQL(query, len(args))
	result, err := s.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing statement: %w", err)
	}
	return result, nil
}

// InsertID runs an INSERT written with ? placeholders and returns the
// generated id column. Backends with RETURNING report the id in the same
// round trip; the others fall back to LastInsertId.
func (s *Session) InsertID(ctx context.Context, query string, args ...any) (int64, error) {
	query = s.Rebind(query)

	if s.dialect.Returning {
		var id int64
		if err := s.GetContext(ctx, &id, query+" RETURNING id", args...); err != nil {
			return 0, fmt.Errorf("executing insert: %w", err)
		}
		return id, nil
	}

	result, err := s.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", err)
	}
	return id, nil
}

// NamedExecContext executes a statement using :name bindings from arg.
func (s *Session) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	s.echoSQL(query, 1)
	result, err := s.tx.NamedExecContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("executing named statement: %w", err)
	}
	return result, nil
}

// GetContext scans a single row into dest. It returns sql.ErrNoRows
// (unwrapped) when nothing matches.
func (s *Session) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	s.echoSQL(query, len(args))
	return s.tx.GetContext(ctx, dest, query, args...)
}

// SelectContext scans all rows into the slice pointed to by dest.
func (s *Session) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	s.echoSQL(query, len(args))
	return s.tx.SelectContext(ctx, dest, query, args...)
}

// QueryxContext runs a query and returns the rows for manual iteration.
func (s *Session) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	s.echoSQL(query, len(args))
	return s.tx.QueryxContext(ctx, query, args...)
}

// QueryRowxContext runs a query expected to return at most one row.
func (s *Session) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	s.echoSQL(query, len(args))
	return s.tx.QueryRowxContext(ctx, query, args...)
}

// Rebind converts ? placeholders into the backend's bind style.
func (s *Session) Rebind(query string) string {
	return s.tx.Rebind(query)
}

// echoSQL logs statements when the manager was connected with echo enabled.
// Argument values are never logged.
func (s *Session) echoSQL(query string, nargs int) {
	if !s.echo {
		return
	}
	s.logger.Info("sql", "session", s.id, "query", query, "args", nargs)
}
