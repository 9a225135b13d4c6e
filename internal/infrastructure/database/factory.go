package database

import (
	"context"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
)

// sessionFactory opens transaction-bound sessions on an established engine.
// It is built once per Connect and never mutated afterwards.
type sessionFactory struct {
	engine     *sqlx.DB
	dialect    Dialect
	autocommit bool
	echo       bool
	logger     Logger

	nextID atomic.Uint64
}

func newSessionFactory(engine *sqlx.DB, dialect Dialect, autocommit, echo bool, logger Logger) *sessionFactory {
	return &sessionFactory{
		engine:     engine,
		dialect:    dialect,
		autocommit: autocommit,
		echo:       echo,
		logger:     logger,
	}
}

// open checks a connection out of the pool and starts a transaction on it.
// On networked backends this blocks while the pool is exhausted, until ctx
// is done.
//
// The transaction itself is not bound to ctx: database/sql discards the
// connection of a transaction whose context is cancelled, and for an
// in-memory SQLite database that connection is the database. Statements
// still observe ctx, and End turns a cancelled ctx into a rollback.
func (f *sessionFactory) open(ctx context.Context) (*Session, error) {
	conn, err := f.engine.Connx(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := conn.BeginTxx(context.WithoutCancel(ctx), nil)
	if err != nil {
		_ = conn.Close() //nolint:errcheck // Returning the connection to the pool
		return nil, err
	}
	return &Session{
		id:         f.nextID.Add(1),
		ctx:        ctx,
		conn:       conn,
		tx:         tx,
		dialect:    f.dialect,
		autocommit: f.autocommit,
		echo:       f.echo,
		logger:     f.logger,
	}, nil
}
