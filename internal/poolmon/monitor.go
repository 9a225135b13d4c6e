// Package poolmon periodically samples database pool statistics and hands
// them to one or more sinks (InfluxDB, MQTT).
package poolmon

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/stockapi-core/internal/infrastructure/database"
)

// DefaultInterval is used when Config.Interval is zero.
const DefaultInterval = 30 * time.Second

// Source is the database manager surface the monitor samples.
type Source interface {
	Config() database.ConnectionConfig
	Stats() database.Stats
}

// Sink receives pool statistics snapshots.
// Implemented by influxdb.Client and mqtt.StatusPublisher.
type Sink interface {
	WritePoolStats(cfg database.ConnectionConfig, st database.Stats, at time.Time)
}

// Logger is the logging surface the monitor needs.
type Logger interface {
	Debug(msg string, args ...any)
}

// Config holds configuration for the monitor.
type Config struct {
	// Source is the manager to sample.
	Source Source

	// Sinks receive every sample, in order.
	Sinks []Sink

	// Interval between samples. Default: 30 seconds.
	Interval time.Duration

	// Logger is optional.
	Logger Logger
}

// Monitor samples a Source on a fixed interval.
//
// A sample is taken immediately on Start, then every interval, and once
// more on Stop so sinks see the final state.
type Monitor struct {
	source   Source
	sinks    []Sink
	interval time.Duration
	logger   Logger

	// now is swapped in tests.
	now func() time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a monitor. Call Start to begin sampling.
func New(cfg Config) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Monitor{
		source:   cfg.Source,
		sinks:    cfg.Sinks,
		interval: interval,
		logger:   cfg.Logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start begins periodic sampling until ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop ends sampling and records a final sample.
// Safe to call multiple times.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
		m.Sample()
	})
}

// Sample takes one snapshot and writes it to every sink.
func (m *Monitor) Sample() {
	if m.source == nil {
		return
	}

	st := m.source.Stats()
	cfg := m.source.Config()
	at := m.now()
	for _, sink := range m.sinks {
		sink.WritePoolStats(cfg, st, at)
	}

	if m.logger != nil {
		m.logger.Debug("pool stats sampled",
			"state", st.State.String(),
			"active_sessions", st.ActiveSessions,
			"in_use", st.Pool.InUse,
			"idle", st.Pool.Idle,
		)
	}
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Sample()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.Sample()
		}
	}
}
