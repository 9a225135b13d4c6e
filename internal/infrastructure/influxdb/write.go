package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/stockapi-core/internal/infrastructure/database"
)

// Measurement names written by this package.
const (
	MeasurementPool = "db_pool"
)

// WritePoolStats records one snapshot of the database manager's pool.
//
// Tags identify the backend (dialect, driver, embedded) and the manager
// state; fields carry the database/sql pool counters and the number of
// open sessions. The write is non-blocking.
func (c *Client) WritePoolStats(cfg database.ConnectionConfig, st database.Stats, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(MeasurementPool, poolTags(cfg, st), poolFields(st), at)
	c.writeAPI.WritePoint(point)
}

func poolTags(cfg database.ConnectionConfig, st database.Stats) map[string]string {
	return map[string]string{
		"dialect":  cfg.Dialect.Name,
		"driver":   cfg.Dialect.Driver,
		"embedded": strconv.FormatBool(cfg.IsEmbedded()),
		"state":    st.State.String(),
	}
}

func poolFields(st database.Stats) map[string]interface{} {
	return map[string]interface{}{
		"active_sessions":  st.ActiveSessions,
		"max_open":         st.Pool.MaxOpenConnections,
		"open":             st.Pool.OpenConnections,
		"in_use":           st.Pool.InUse,
		"idle":             st.Pool.Idle,
		"wait_count":       st.Pool.WaitCount,
		"wait_duration_ms": st.Pool.WaitDuration.Milliseconds(),
		"max_idle_closed":  st.Pool.MaxIdleClosed,
		"lifetime_closed":  st.Pool.MaxLifetimeClosed,
	}
}

// WritePoint writes a custom point stamped with the current time.
//
// Example:
//
//	client.WritePoint("migrations",
//	    map[string]string{"dialect": "postgres"},
//	    map[string]interface{}{"tables": 2})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
