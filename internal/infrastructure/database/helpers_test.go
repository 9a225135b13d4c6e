package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// pooledScheme is a file-backed SQLite dialect flagged as networked, so the
// pool sizing rules for server backends can be exercised without a server.
const pooledScheme = "sqlite+pooled"

// failingRollbackScheme is an embedded SQLite dialect whose driver rolls
// transactions back but then reports errRollbackRefused.
const failingRollbackScheme = "sqlite+failrollback"

var errRollbackRefused = errors.New("rollback refused")

func init() {
	RegisterDialect(pooledScheme, Dialect{
		Name:          FamilySQLite,
		Driver:        "sqlite3",
		Returning:     true,
		ForeignKeysOn: "PRAGMA foreign_keys=ON",
		DSN:           mattnDSN,
	})

	sql.Register("sqlite3-failrollback", failingRollbackDriver{Driver: &sqlite3.SQLiteDriver{}})
	RegisterDialect(failingRollbackScheme, Dialect{
		Name:          FamilySQLite,
		Driver:        "sqlite3-failrollback",
		Embedded:      true,
		Returning:     true,
		ForeignKeysOn: "PRAGMA foreign_keys=ON",
		DSN:           mattnDSN,
	})
}

type failingRollbackDriver struct {
	driver.Driver
}

func (d failingRollbackDriver) Open(name string) (driver.Conn, error) {
	c, err := d.Driver.Open(name)
	if err != nil {
		return nil, err
	}
	return failingRollbackConn{Conn: c}, nil
}

type failingRollbackConn struct {
	driver.Conn
}

func (c failingRollbackConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	tx, err := c.Conn.(driver.ConnBeginTx).BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return failingRollbackTx{Tx: tx}, nil
}

type failingRollbackTx struct {
	driver.Tx
}

func (tx failingRollbackTx) Rollback() error {
	if err := tx.Tx.Rollback(); err != nil {
		return err
	}
	return errRollbackRefused
}

// testSchema is a two-table schema with a foreign key between the tables.
var testSchema = NewSchema(fstest.MapFS{
	"sqlite/001_users.sql": {Data: []byte(`
-- users
CREATE TABLE IF NOT EXISTS users (
    id   INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);
`)},
	"sqlite/002_notes.sql": {Data: []byte(`
CREATE TABLE IF NOT EXISTS notes (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    body    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_user_id ON notes(user_id);
`)},
})

// fileURL returns a connection string for a fresh SQLite file in a temp dir.
func fileURL(t *testing.T, scheme string) string {
	t.Helper()
	return scheme + ":///" + filepath.Join(t.TempDir(), "test.db")
}

// connectTestManager connects a manager, applies testSchema and disconnects on cleanup.
func connectTestManager(t *testing.T, url string, opts ...Option) *Manager {
	t.Helper()

	m, err := New(url, opts...)
	require.NoError(t, err)
	require.NoError(t, m.Connect(context.Background()))
	t.Cleanup(m.Disconnect)

	require.NoError(t, m.Migrate(context.Background(), testSchema, false))
	return m
}

func insertUser(ctx context.Context, s *Session, name string) error {
	_, err := s.ExecContext(ctx, "INSERT INTO users (name) VALUES (?)", name)
	return err
}

func countUsers(t *testing.T, m *Manager) int {
	t.Helper()

	var n int
	err := m.WithSession(context.Background(), func(ctx context.Context, s *Session) error {
		return s.GetContext(ctx, &n, "SELECT COUNT(*) FROM users")
	})
	require.NoError(t, err)
	return n
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

func (l *recordingLogger) find(msg string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []logEntry
	for _, e := range l.entries {
		if e.msg == msg {
			out = append(out, e)
		}
	}
	return out
}

// lastIndex returns the position of the most recent entry with msg, or -1.
func (l *recordingLogger) lastIndex(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].msg == msg {
			return i
		}
	}
	return -1
}

func (l *recordingLogger) dump() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprint(l.entries)
}

// attr returns the value logged under key, or nil.
func (e logEntry) attr(key string) any {
	for i := 0; i+1 < len(e.args); i += 2 {
		if e.args[i] == key {
			return e.args[i+1]
		}
	}
	return nil
}
