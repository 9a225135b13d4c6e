// Package database manages the relational backend for stockapi Core.
//
// This package manages:
//   - Connection string parsing and dialect selection (SQLite, PostgreSQL, MySQL)
//   - The engine (connection pool) lifecycle: Connect, Disconnect, Ping
//   - Transaction-scoped sessions with automatic commit/rollback
//   - Tracking of in-flight sessions so shutdown can close them
//   - Drop/create schema migration from embedded DDL files
//
// Backends:
//
//	sqlite:///./database.db         mattn/go-sqlite3, embedded
//	sqlite+modernc:///:memory:      modernc.org/sqlite, embedded
//	postgres://user:pw@host/stocks  jackc/pgx, networked
//	mysql://user:pw@host:3306/stock go-sql-driver/mysql, networked
//
// Embedded backends run on a single shared connection and ignore pool
// sizing. Networked backends keep PoolSize idle connections and allow up
// to PoolSize+MaxOverflow; callers beyond that block in BeginSession until
// a session ends.
//
// Usage:
//
//	mgr, err := database.Acquire(cfg.Database.URL, database.WithAutocommit(cfg.Autocommit()))
//	if err != nil {
//	    return err
//	}
//	defer database.CloseAll()
//
//	if err := mgr.Connect(ctx); err != nil {
//	    return err
//	}
//	if err := mgr.Migrate(ctx, migrations.Schema(), false); err != nil {
//	    return err
//	}
//
//	err = mgr.WithSession(ctx, func(ctx context.Context, s *database.Session) error {
//	    _, err := s.ExecContext(ctx, s.Rebind("UPDATE users SET is_superuser = ? WHERE id = ?"), true, id)
//	    return err
//	})
//
// Error Handling:
//   - Connectivity failures and use before Connect return *ConnectionError
//     (errors.Is(err, ErrConnection) holds for all of them)
//   - Errors returned from inside a session pass through unchanged after rollback
//   - Disconnect never fails; cleanup problems are logged
//
// Known Limitations:
//   - Migrate runs in one transaction, but MySQL commits DDL implicitly and
//     SQLite ignores PRAGMA statements inside transactions, so partial DDL
//     failures are not recoverable on every backend.
package database
