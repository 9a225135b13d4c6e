package mqtt

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/stockapi-core/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger used by this package.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any) {}
func (nopLogger) Warn(string, ...any) {}

// Option configures a Client before it connects.
type Option func(*Client)

// WithLogger reports connection changes (connected, reconnected, lost) to logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.log = logger
		}
	}
}

// Client is the broker connection used to announce stockapi status.
//
// The broker holds a retained online/offline message on
// stockapi/system/status: online is republished on every (re)connect,
// offline is sent by Close, and the broker itself sends offline through
// the Last Will if the process dies. Paho reconnects on its own; the client
// only tracks whether the link is up.
type Client struct {
	paho pahomqtt.Client
	cfg  config.MQTTConfig
	log  Logger

	up       atomic.Bool
	connects atomic.Int64
}

// Connect dials the broker described by cfg and waits up to
// defaultConnectTimeout for the first connection.
func Connect(cfg config.MQTTConfig, opts ...Option) (*Client, error) {
	c := &Client{cfg: cfg, log: nopLogger{}}
	for _, opt := range opts {
		opt(c)
	}

	po := buildClientOptions(cfg)
	configureLWT(po, cfg.Broker.ClientID)
	po.SetOnConnectHandler(func(pahomqtt.Client) { c.linkUp() })
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.linkDown(err) })

	c.paho = pahomqtt.NewClient(po)
	if err := await(c.paho.Connect(), defaultConnectTimeout); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, brokerURL(cfg), err)
	}
	// The connect handler runs on a paho goroutine and may still be pending.
	c.up.Store(true)
	return c, nil
}

// linkUp runs on the paho goroutine after each successful (re)connect.
// It must not block on a token, so the online status is fire-and-forget.
func (c *Client) linkUp() {
	c.up.Store(true)
	c.paho.Publish(Topics{}.SystemStatus(), c.QoS(), true, buildOnlinePayload(c.cfg.Broker.ClientID))

	if c.connects.Add(1) == 1 {
		c.log.Info("MQTT connected", "broker", brokerURL(c.cfg), "client_id", c.cfg.Broker.ClientID)
		return
	}
	c.log.Info("MQTT reconnected", "broker", brokerURL(c.cfg))
}

func (c *Client) linkDown(err error) {
	c.up.Store(false)
	c.log.Warn("MQTT connection lost", "broker", brokerURL(c.cfg), "error", err)
}

// Close announces a graceful offline status and disconnects. It is safe on
// a nil or never-connected client and always returns nil.
func (c *Client) Close() error {
	if c == nil || c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		offline := c.paho.Publish(Topics{}.SystemStatus(), c.QoS(), true, buildOfflinePayload(c.cfg.Broker.ClientID))
		if err := await(offline, defaultPublishTimeout); err != nil {
			c.log.Warn("offline status not delivered", "error", err)
		}
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.up.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the broker link is up.
func (c *Client) IsConnected() bool {
	return c != nil && c.paho != nil && c.up.Load() && c.paho.IsConnected()
}

// await waits for a paho token, turning a timeout into an error.
func await(t pahomqtt.Token, timeout time.Duration) error {
	if !t.WaitTimeout(timeout) {
		return fmt.Errorf("timeout after %v", timeout)
	}
	return t.Error()
}
