package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/infrastructure/config"
)

// Logger defines the logging interface for the client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler handles one inbound message. A returned error is logged
// and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

// Client publishes target state to the broker and receives reset commands.
//
// Paho reconnects on its own after the first successful connect; the client
// re-subscribes every tracked topic and republishes the online status each
// time it does. All methods are safe for concurrent use.
type Client struct {
	client   pahomqtt.Client
	qos      byte
	clientID string

	connected atomic.Bool
	lost      atomic.Uint64

	mu   sync.RWMutex
	subs map[string]subscription

	logger atomic.Pointer[loggerBox]
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// loggerBox lets an interface value live in an atomic.Pointer.
type loggerBox struct{ Logger }

// Connect dials the broker and waits for the CONNACK.
//
// The wait ends at defaultConnectTimeout or when ctx is done, whichever is
// first. A refused first connection is not retried: a broker that is down
// at startup is a configuration problem.
//
// Parameters:
//   - ctx: Bounds the initial connect
//   - cfg: MQTT section of the dbkeeper config
//   - logger: Receives connection and handler events (may be nil)
//
// Returns:
//   - *Client: Connected client
//   - error: ErrConnectionFailed wrapping the cause
func Connect(ctx context.Context, cfg config.MQTTConfig, logger Logger) (*Client, error) {
	c := newClient(cfg, logger)

	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	if err := waitToken(ctx, c.client.Connect()); err != nil {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect callback runs on paho's goroutine and may lag the token.
	c.connected.Store(true)
	c.getLogger().Info("MQTT connected", "client_id", c.clientID)
	return c, nil
}

func newClient(cfg config.MQTTConfig, logger Logger) *Client {
	c := &Client{
		qos:  byte(cfg.QoS),
		subs: make(map[string]subscription),
	}
	c.SetLogger(logger)

	opts := clientOptions(cfg)
	c.clientID = opts.ClientID
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.getLogger().Warn("MQTT reconnecting", "client_id", c.clientID)
	})

	c.client = pahomqtt.NewClient(opts)
	return c
}

func (c *Client) onConnect() {
	c.connected.Store(true)

	c.mu.RLock()
	for topic, sub := range c.subs {
		// Delivery resumes once the broker acks; failures surface on the next
		// connection loss.
		c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
	c.mu.RUnlock()

	c.client.Publish(Topics{}.SystemStatus(), c.qos, true, statusPayload(c.clientID, statusOnline, ""))
}

func (c *Client) onConnectionLost(err error) {
	c.connected.Store(false)
	n := c.lost.Add(1)
	c.getLogger().Warn("MQTT connection lost", "error", err, "times", n)
}

// Close publishes a graceful offline status and disconnects. It is safe on
// a nil or unconnected client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(Topics{}.SystemStatus(), c.qos, true,
			statusPayload(c.clientID, statusOffline, reasonShutdown))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known link state.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client.IsConnected()
}

// ConnectionLosses returns how many times the broker link has dropped since
// Connect.
func (c *Client) ConnectionLosses() uint64 {
	return c.lost.Load()
}

// SetLogger replaces the client's logger. A nil logger discards output.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger.Store(&loggerBox{logger})
}

func (c *Client) getLogger() Logger {
	return c.logger.Load().Logger
}

// wrapHandler adapts h to paho. Handler errors are logged and panics are
// recovered.
func (c *Client) wrapHandler(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.getLogger().Error("MQTT handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}()

		if err := h(msg.Topic(), msg.Payload()); err != nil {
			c.getLogger().Warn("MQTT handler returned error",
				"topic", msg.Topic(),
				"error", err,
			)
		}
	}
}

// waitToken blocks until the token completes or ctx is done.
func waitToken(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}
