package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/plaf203-core/internal/infrastructure/config"
)

// Client is the broker connection of one feeder core process. It owns the
// retained bridge topic and restores subscriptions after a reconnect.
//
// All methods are safe for concurrent use.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig
	topics  Topics

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// mu guards connected, the hooks and the logger.
	mu           sync.RWMutex
	connected    bool
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger

	received      atomic.Uint64
	handlerErrors atomic.Uint64
	reconnects    atomic.Uint64
	lastMessage   atomic.Int64 // unix nanoseconds, zero until the first message
}

// Logger is the subset of logging.Logger the client uses.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// MessageHandler receives one message. Handlers run on paho goroutines,
// possibly concurrently. A returned error is logged and counted; the
// message is acknowledged either way.
type MessageHandler func(topic string, payload []byte) error

// Stats is a point-in-time view of the connection.
type Stats struct {
	Connected     bool      `json:"connected"`
	Received      uint64    `json:"messages_received"`
	HandlerErrors uint64    `json:"handler_errors"`
	Reconnects    uint64    `json:"reconnects"`
	LastMessage   time.Time `json:"last_message"`
}

// Connect dials the broker for the feeder with the given serial. The Last
// Will is armed before dialling and the bridge topic flips to "online"
// on every successful (re)connect.
//
// The error wraps ErrConnectionFailed when the broker does not answer
// within the connect timeout.
func Connect(cfg config.MQTTConfig, serial string) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		topics:        Topics{Serial: serial},
		subscriptions: make(map[string]subscription),
	}

	c.options = buildClientOptions(cfg)
	configureLWT(c.options, c.topics, cfg.Broker.ClientID)
	c.options.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnected() })
	c.options.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })
	c.options.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.reconnects.Add(1)
		c.warn("MQTT reconnecting", "broker", cfg.Broker.Host)
	})

	c.client = pahomqtt.NewClient(c.options)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: no answer from %s:%d after %v",
			ErrConnectionFailed, cfg.Broker.Host, cfg.Broker.Port, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The paho connect hook is asynchronous.
	c.setConnected(true)
	return c, nil
}

func (c *Client) onConnected() {
	c.setConnected(true)
	c.restoreSubscriptions()
	c.publishBridge(bridgeOnline, "")

	c.mu.RLock()
	hook := c.onConnect
	c.mu.RUnlock()
	if hook != nil {
		hook()
	}
}

func (c *Client) onConnectionLost(err error) {
	c.setConnected(false)
	c.warn("MQTT connection lost", "error", err)

	c.mu.RLock()
	hook := c.onDisconnect
	c.mu.RUnlock()
	if hook != nil {
		hook(err)
	}
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for topic, sub := range c.subscriptions {
		token := c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
		go func(topic string) {
			if token.WaitTimeout(defaultPublishTimeout) && token.Error() != nil {
				c.warn("MQTT resubscribe failed", "topic", topic, "error", token.Error())
			}
		}(topic)
	}
}

func (c *Client) publishBridge(status, reason string) pahomqtt.Token {
	payload := bridgePayload(status, c.topics.Serial, c.cfg.Broker.ClientID, reason)
	return c.client.Publish(c.topics.Bridge(), 1, true, payload)
}

// Topics returns the bridge topic builder for this client's feeder.
func (c *Client) Topics() Topics { return c.topics }

// Close marks the bridge offline and disconnects. A nil or never
// connected client closes without error.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.publishBridge(bridgeOffline, "graceful_shutdown").WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)
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

// IsConnected reports whether the link is currently up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// Stats returns message counters and the connection state.
func (c *Client) Stats() Stats {
	s := Stats{
		Connected:     c.IsConnected(),
		Received:      c.received.Load(),
		HandlerErrors: c.handlerErrors.Load(),
		Reconnects:    c.reconnects.Load(),
	}
	if ns := c.lastMessage.Load(); ns != 0 {
		s.LastMessage = time.Unix(0, ns).UTC()
	}
	return s
}

// SetOnConnect registers a hook run after the first connect and every reconnect.
func (c *Client) SetOnConnect(hook func()) {
	c.mu.Lock()
	c.onConnect = hook
	c.mu.Unlock()
}

// SetOnDisconnect registers a hook run when the link drops.
func (c *Client) SetOnDisconnect(hook func(err error)) {
	c.mu.Lock()
	c.onDisconnect = hook
	c.mu.Unlock()
}

// SetLogger sets where handler failures and reconnects are reported.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

func (c *Client) warn(msg string, args ...any) {
	if l := c.log(); l != nil {
		l.Warn(msg, args...)
	}
}

// wrapHandler adapts handler to paho and recovers its panics.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.received.Add(1)
		c.lastMessage.Store(time.Now().UnixNano())

		defer func() {
			if r := recover(); r != nil {
				c.handlerErrors.Add(1)
				if l := c.log(); l != nil {
					l.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.handlerErrors.Add(1)
			c.warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
