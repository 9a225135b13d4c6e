package mqtt

import (
	"sync"
	"time"

	"github.com/nerrad567/stockapi-core/internal/infrastructure/database"
)

// Publisher is the subset of Client used by StatusPublisher.
type Publisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// DatabaseState is the payload of stockapi/database/state.
type DatabaseState struct {
	State     string `json:"state"`
	Database  string `json:"database"`
	Driver    string `json:"driver"`
	Embedded  bool   `json:"embedded"`
	Timestamp string `json:"timestamp"`
}

// DatabaseStats is the payload of stockapi/database/stats.
type DatabaseStats struct {
	State          string `json:"state"`
	Database       string `json:"database"`
	ActiveSessions int    `json:"active_sessions"`
	MaxOpen        int    `json:"max_open"`
	Open           int    `json:"open"`
	InUse          int    `json:"in_use"`
	Idle           int    `json:"idle"`
	WaitCount      int64  `json:"wait_count"`
	WaitDurationMS int64  `json:"wait_duration_ms"`
	Timestamp      string `json:"timestamp"`
}

// StatusPublisher mirrors the database manager onto retained MQTT topics.
//
// OnState is meant to be registered with database.WithStateListener;
// WritePoolStats makes it a pool monitor sink. Publishing is best effort:
// failures are logged and never reach the database manager.
type StatusPublisher struct {
	publisher Publisher
	qos       byte
	conn      database.ConnectionConfig

	// now is swapped in tests.
	now func() time.Time

	logger   Logger
	loggerMu sync.RWMutex
}

// NewStatusPublisher creates a publisher for the backend described by conn.
func NewStatusPublisher(publisher Publisher, conn database.ConnectionConfig, qos byte) *StatusPublisher {
	return &StatusPublisher{
		publisher: publisher,
		qos:       qos,
		conn:      conn,
		now:       time.Now,
	}
}

// SetLogger sets the logger for publish failures.
func (p *StatusPublisher) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	p.logger = logger
	p.loggerMu.Unlock()
}

// OnState publishes the manager's lifecycle state.
func (p *StatusPublisher) OnState(state database.State) {
	msg := DatabaseState{
		State:     state.String(),
		Database:  p.conn.Redacted(),
		Driver:    p.conn.Dialect.Driver,
		Embedded:  p.conn.IsEmbedded(),
		Timestamp: p.timestamp(),
	}
	p.publish(Topics{}.DatabaseState(), msg)
}

// WritePoolStats publishes a snapshot of the pool. The snapshot time is at.
func (p *StatusPublisher) WritePoolStats(conn database.ConnectionConfig, st database.Stats, at time.Time) {
	msg := DatabaseStats{
		State:          st.State.String(),
		Database:       conn.Redacted(),
		ActiveSessions: st.ActiveSessions,
		MaxOpen:        st.Pool.MaxOpenConnections,
		Open:           st.Pool.OpenConnections,
		InUse:          st.Pool.InUse,
		Idle:           st.Pool.Idle,
		WaitCount:      st.Pool.WaitCount,
		WaitDurationMS: st.Pool.WaitDuration.Milliseconds(),
		Timestamp:      at.UTC().Format(time.RFC3339),
	}
	p.publish(Topics{}.DatabaseStats(), msg)
}

func (p *StatusPublisher) timestamp() string {
	return p.now().UTC().Format(time.RFC3339)
}

func (p *StatusPublisher) publish(topic string, msg any) {
	if p.publisher == nil || !p.publisher.IsConnected() {
		return
	}

	payload, err := marshalPayload(msg)
	if err == nil {
		err = p.publisher.Publish(topic, payload, p.qos, true)
	}
	if err != nil {
		p.loggerMu.RLock()
		logger := p.logger
		p.loggerMu.RUnlock()
		if logger != nil {
			logger.Warn("failed to publish database status", "topic", topic, "error", err)
		}
	}
}
