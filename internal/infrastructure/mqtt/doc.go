// Package mqtt publishes stockapi Core status to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained status topics under stockapi/ with QoS guarantees
//   - Last Will and Testament (LWT) so subscribers see unexpected exits
//   - Mirroring the database manager's lifecycle state and pool statistics
//
// Topics:
//
//	stockapi/system/status     online/offline (LWT)
//	stockapi/database/state    disconnected/connecting/connected
//	stockapi/database/stats    pool statistics snapshot
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.WithLogger(log.Component("mqtt")))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	status := mqtt.NewStatusPublisher(client, connCfg, client.QoS())
//	mgr, err := database.Acquire(url, database.WithStateListener(status.OnState))
//
// Security Considerations:
//   - Enable TLS (cfg.Broker.TLS) outside local development
//   - Payloads carry redacted connection strings only
package mqtt
