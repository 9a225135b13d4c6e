// Package api implements the operational HTTP server for stockapi Core.
//
// This package provides:
//   - Liveness and readiness endpoints backed by the database manager
//   - Database pool statistics and process metrics as JSON
//   - Request IDs (X-Request-ID) threaded through access logs and error bodies
//
// Endpoints:
//
//	GET /api/v1/health          database + optional dependency checks
//	GET /api/v1/ready           200 only when the database answers a ping
//	GET /api/v1/database/stats  pool statistics and active session count
//	GET /api/v1/metrics         runtime, database and broker metrics
//
// The database is required: when its ping fails, health and ready return
// 503. MQTT and InfluxDB are optional and only degrade the health status.
//
// Errors are JSON Problem bodies: {"code", "message", "request_id"}.
package api
