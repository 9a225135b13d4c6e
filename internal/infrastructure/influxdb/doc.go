// Package influxdb writes stockapi operational metrics to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. The main producer
// is the pool monitor, which periodically records database pool
// statistics under the "db_pool" measurement.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePoolStats(mgr.Config(), mgr.Stats(), time.Now())
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Batch failures are delivered to the SetOnError callback
// wrapped in ErrWriteFailed; connection and health check errors are
// returned directly.
package influxdb
