package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// Pool configuration constants.
const (
	// DefaultPoolSize is the steady-state connection count for networked backends.
	DefaultPoolSize = 5

	// DefaultMaxOverflow is the burst capacity above DefaultPoolSize.
	DefaultMaxOverflow = 5

	// connectionTimeout bounds the connectivity check run by Connect.
	connectionTimeout = 5 * time.Second

	// connMaxLifetime refreshes networked connections hourly.
	connMaxLifetime = time.Hour

	// connMaxIdleTime is how long idle networked connections are kept open.
	connMaxIdleTime = 30 * time.Minute
)

// State is the lifecycle state of a Manager.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Logger is the logging surface the manager needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithAutocommit controls whether sessions commit on successful exit.
// It is true by default; isolated test runs turn it off and roll back
// explicitly after their assertions.
func WithAutocommit(autocommit bool) Option {
	return func(m *Manager) {
		m.autocommit = autocommit
	}
}

// WithLogger sets the logger for lifecycle events, cleanup failures and echoed SQL.
func WithLogger(logger Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithStateListener registers a callback invoked after every lifecycle
// transition. It runs synchronously and must not call Connect or Disconnect.
func WithStateListener(fn func(State)) Option {
	return func(m *Manager) {
		m.onState = fn
	}
}

// ConnectOption tunes a single Connect call.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	echoSQL     bool
	poolSize    int
	maxOverflow int
}

// WithEchoSQL logs every statement executed through a session.
func WithEchoSQL(echo bool) ConnectOption {
	return func(o *connectOptions) { o.echoSQL = echo }
}

// WithPoolSize sets the steady-state pool size. Ignored by embedded backends.
func WithPoolSize(n int) ConnectOption {
	return func(o *connectOptions) { o.poolSize = n }
}

// WithMaxOverflow sets the burst capacity above the pool size. Ignored by embedded backends.
func WithMaxOverflow(n int) ConnectOption {
	return func(o *connectOptions) { o.maxOverflow = n }
}

// Stats is a point-in-time view of the manager and its pool.
type Stats struct {
	State          State
	ActiveSessions int
	Pool           sql.DBStats
}

// Manager owns the engine (connection pool) for one connection string and
// hands out transaction-scoped sessions.
//
// Lifecycle: Disconnected -> Connecting -> Connected -> Disconnected.
// Connect and Disconnect are idempotent.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - lifecycleMu serialises Connect, Disconnect and Migrate; mu guards the state, engine,
//     factory and the identity of the session registry.
type Manager struct {
	cfg        ConnectionConfig
	autocommit bool
	logger     Logger
	onState    func(State)

	lifecycleMu sync.Mutex

	mu       sync.Mutex
	state    State
	engine   *sqlx.DB
	factory  *sessionFactory
	sessions *sessionRegistry
}

// New creates a disconnected manager for the given connection string.
//
// Parameters:
//   - url: Connection string, e.g. "sqlite:///./database.db" or "postgres://host/db"
//   - opts: Construction options (autocommit, logger, state listener)
//
// Returns:
//   - *Manager: Manager in the Disconnected state
//   - error: If the connection string cannot be parsed
func New(url string, opts ...Option) (*Manager, error) {
	cfg, err := ParseConnectionString(url)
	if err != nil {
		return nil, err
	}
	return newManager(cfg, opts...), nil
}

func newManager(cfg ConnectionConfig, opts ...Option) *Manager {
	m := &Manager{
		cfg:        cfg,
		autocommit: true,
		logger:     slog.New(slog.DiscardHandler),
		sessions:   newSessionRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the parsed connection configuration.
func (m *Manager) Config() ConnectionConfig {
	return m.cfg
}

// Autocommit reports whether sessions commit on successful exit.
func (m *Manager) Autocommit() bool {
	return m.autocommit
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the manager is fully connected.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Connect builds the engine and session factory and verifies connectivity.
//
// It is a no-op when already connected. Embedded backends run on a single
// shared connection and ignore pool options; networked backends keep
// PoolSize idle connections and open up to PoolSize+MaxOverflow.
//
// If the connectivity check fails the attempt is unwound (engine closed,
// state back to Disconnected) and a *ConnectionError is returned.
func (m *Manager) Connect(ctx context.Context, opts ...ConnectOption) error {
	o := connectOptions{poolSize: DefaultPoolSize, maxOverflow: DefaultMaxOverflow}
	for _, opt := range opts {
		opt(&o)
	}

	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.State() != StateDisconnected {
		return nil
	}

	if !m.cfg.IsEmbedded() && (o.poolSize < 1 || o.maxOverflow < 0) {
		return fmt.Errorf("%w: pool_size=%d max_overflow=%d", ErrInvalidPoolOptions, o.poolSize, o.maxOverflow)
	}

	engine, err := sqlx.Open(m.cfg.Dialect.Driver, m.cfg.DSN)
	if err != nil {
		return &ConnectionError{Op: "connect", Msg: "failed to open engine", Err: err}
	}
	configurePool(engine, m.cfg.IsEmbedded(), o)

	factory := newSessionFactory(engine, m.cfg.Dialect, m.autocommit, o.echoSQL, m.logger)

	m.mu.Lock()
	m.engine = engine
	m.factory = factory
	m.state = StateConnecting
	sessions := m.sessions
	m.mu.Unlock()
	m.notify(StateConnecting)

	if err := m.checkConnection(ctx, factory, sessions); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = StateConnected
	m.mu.Unlock()
	m.notify(StateConnected)

	m.logger.Info("database connected",
		"url", m.cfg.Redacted(),
		"driver", m.cfg.Dialect.Driver,
		"embedded", m.cfg.IsEmbedded(),
	)
	return nil
}

// configurePool applies pooling rules for the backend flavour.
func configurePool(engine *sqlx.DB, embedded bool, o connectOptions) {
	if embedded {
		// One shared connection that never expires: in-memory databases
		// live exactly as long as their connection.
		engine.SetMaxOpenConns(1)
		engine.SetMaxIdleConns(1)
		engine.SetConnMaxLifetime(0)
		engine.SetConnMaxIdleTime(0)
		return
	}
	engine.SetMaxOpenConns(o.poolSize + o.maxOverflow)
	engine.SetMaxIdleConns(o.poolSize)
	engine.SetConnMaxLifetime(connMaxLifetime)
	engine.SetConnMaxIdleTime(connMaxIdleTime)
}

// checkConnection pings through a real session while the manager is
// Connecting, and unwinds the connect attempt if the ping fails.
// Callers must hold lifecycleMu.
func (m *Manager) checkConnection(ctx context.Context, factory *sessionFactory, sessions *sessionRegistry) error {
	checkCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := m.ping(checkCtx, factory, sessions); err != nil {
		m.disconnectLocked()
		return &ConnectionError{Op: "connect", Msg: "failed to connect to the database", Err: err}
	}
	return nil
}

// Disconnect closes any sessions still open, disposes of the engine and
// resets the manager to Disconnected.
//
// It never fails: cleanup errors are logged and shutdown runs to completion.
// Calling Disconnect on a disconnected manager is a no-op.
func (m *Manager) Disconnect() {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	m.disconnectLocked()
}

// disconnectLocked is Disconnect without the lifecycle lock. Callers must hold lifecycleMu.
func (m *Manager) disconnectLocked() {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	engine := m.engine
	stray := m.sessions.drain()
	m.engine = nil
	m.factory = nil
	m.sessions = newSessionRegistry()
	m.state = StateDisconnected
	m.mu.Unlock()

	for _, s := range stray {
		m.logger.Warn("closing session still open at disconnect", "session", s.id)
		if err := s.rollback(); err != nil {
			m.logger.Error("error closing stray session", "session", s.id, "error", err)
		}
		s.releaseConn()
	}

	if err := engine.Close(); err != nil {
		m.logger.Error("error closing database engine", "error", err)
	}

	m.notify(StateDisconnected)
	m.logger.Info("database disconnected", "url", m.cfg.Redacted())
}

// BeginSession opens a new transaction-scoped session.
//
// The caller owns the session and must finish it with End. On networked
// backends the call blocks while every pooled connection is checked out.
//
// Returns:
//   - *Session: Registered, open session
//   - error: *ConnectionError if not connected or the transaction cannot start
func (m *Manager) BeginSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return nil, errNotConnected("begin session")
	}
	factory, sessions := m.factory, m.sessions
	m.mu.Unlock()

	return m.openSession(ctx, factory, sessions)
}

// openSession starts a transaction and registers it, unless the manager
// was disconnected while the transaction was being acquired.
func (m *Manager) openSession(ctx context.Context, factory *sessionFactory, sessions *sessionRegistry) (*Session, error) {
	s, err := factory.open(ctx)
	if err != nil {
		return nil, &ConnectionError{Op: "begin session", Msg: "failed to start transaction", Err: err}
	}

	m.mu.Lock()
	if m.sessions != sessions || m.state == StateDisconnected {
		m.mu.Unlock()
		_ = s.rollback() //nolint:errcheck // Best effort: the engine is being disposed
		s.releaseConn()
		return nil, errNotConnected("begin session")
	}
	sessions.add(s)
	s.release = func() { sessions.remove(s.id) }
	m.mu.Unlock()

	return s, nil
}

// WithSession runs fn inside a session and finishes it according to fn's result.
//
// A nil return commits (when autocommit is on); any error rolls back and is
// returned unchanged. A panic inside fn rolls back, deregisters the session
// and re-panics. Context cancellation surfaces as an error from the session's
// statements and follows the rollback path; a context cancelled after the
// last statement rolls back too and is returned as ctx.Err().
func (m *Manager) WithSession(ctx context.Context, fn func(ctx context.Context, s *Session) error) error {
	s, err := m.BeginSession(ctx)
	if err != nil {
		return err
	}
	return runSession(ctx, s, fn)
}

func runSession(ctx context.Context, s *Session, fn func(ctx context.Context, s *Session) error) error {
	defer func() {
		if r := recover(); r != nil {
			_ = s.End(fmt.Errorf("panic in session %d: %v", s.id, r)) //nolint:errcheck // Re-panicking below
			panic(r)
		}
	}()
	return s.End(fn(ctx, s))
}

// Ping opens a session and runs a trivial query.
//
// Returns:
//   - error: *ConnectionError wrapping the cause if the database is unreachable
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return &ConnectionError{Op: "ping", Msg: "failed to ping the database", Err: errNotConnected("ping")}
	}
	factory, sessions := m.factory, m.sessions
	m.mu.Unlock()

	return m.ping(ctx, factory, sessions)
}

func (m *Manager) ping(ctx context.Context, factory *sessionFactory, sessions *sessionRegistry) error {
	s, err := m.openSession(ctx, factory, sessions)
	if err == nil {
		err = runSession(ctx, s, func(ctx context.Context, s *Session) error {
			var one int
			return s.GetContext(ctx, &one, "SELECT 1")
		})
	}
	if err != nil {
		return &ConnectionError{Op: "ping", Msg: "failed to ping the database", Err: err}
	}
	return nil
}

// HealthCheck verifies the database is reachable. It is Ping under the
// name the rest of the application uses for infrastructure checks.
func (m *Manager) HealthCheck(ctx context.Context) error {
	return m.Ping(ctx)
}

// Migrate applies schema inside a single engine-level transaction: drop
// every schema table first when drop is set, then create every table.
// Embedded SQLite backends additionally enable foreign-key enforcement.
//
// Migrate holds the lifecycle lock, so a concurrent Disconnect waits for the
// migration to commit or roll back before it disposes of the engine.
//
// DDL transactionality is backend dependent (MySQL commits DDL implicitly),
// so a failure part way through may leave earlier statements applied there.
func (m *Manager) Migrate(ctx context.Context, schema *Schema, drop bool) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return errNotConnected("migrate")
	}
	engine := m.engine
	m.mu.Unlock()

	if err := runMigration(ctx, engine, m.cfg.Dialect, schema, drop); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	m.logger.Info("database schema migrated", "drop", drop)
	return nil
}

// Stats returns pool statistics and the number of open sessions.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{
		State:          m.state,
		ActiveSessions: m.sessions.len(),
	}
	if m.engine != nil {
		st.Pool = m.engine.Stats()
	}
	return st
}

// ActiveSessions returns the number of sessions currently open.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions.len()
}

// isActive reports whether s is in the current active set.
func (m *Manager) isActive(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions.contains(s.id)
}

func (m *Manager) notify(s State) {
	if m.onState != nil {
		m.onState(s)
	}
}
