// Package router connects the feeder's MQTT topics to command handlers.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/plaf203-core/internal/protocol"
)

// Transport is the message bus the router runs on.
type Transport interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Unsubscribe(topics ...string) error
}

// Logger is the logging interface the router needs.
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

// HandlerFunc handles one decoded device message.
type HandlerFunc func(ctx context.Context, msg protocol.Message) error

// Router decodes device messages and dispatches them by command.
//
// Handlers are registered before Start; the dispatch table is read-only
// afterwards. Dispatch is by command identity: the stream a message
// arrives on is only checked for logging.
type Router struct {
	transport Transport
	codec     *protocol.Codec
	topics    Topics
	qos       byte
	logger    Logger

	handlers map[protocol.Command]HandlerFunc

	mu         sync.Mutex
	ctx        context.Context
	subscribed []string
}

// Option configures a Router.
type Option func(*Router)

// WithQoS sets the QoS for subscriptions and sends. The default is 1.
func WithQoS(qos byte) Option {
	return func(r *Router) { r.qos = qos }
}

// WithLogger sets the router's logger.
func WithLogger(l Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a router for one device.
func New(transport Transport, codec *protocol.Codec, topics Topics, opts ...Option) *Router {
	r := &Router{
		transport: transport,
		codec:     codec,
		topics:    topics,
		qos:       1,
		logger:    noopLogger{},
		handlers:  make(map[protocol.Command]HandlerFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Topics returns the topic builder.
func (r *Router) Topics() Topics { return r.topics }

// Handle registers h for cmd.
func (r *Router) Handle(cmd protocol.Command, h HandlerFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx != nil {
		return fmt.Errorf("%w: cannot register %s", ErrAlreadyStarted, cmd)
	}
	if _, exists := r.handlers[cmd]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, cmd)
	}
	r.handlers[cmd] = h
	return nil
}

// On registers a typed handler for cmd. T is the pointer type Decode
// produces for cmd, for example *protocol.HeartbeatIn.
func On[T protocol.Message](r *Router, cmd protocol.Command, fn func(ctx context.Context, msg T) error) error {
	return r.Handle(cmd, func(ctx context.Context, msg protocol.Message) error {
		typed, ok := msg.(T)
		if !ok {
			return fmt.Errorf("%w: %s decoded as %T", ErrUnexpectedMessage, cmd, msg)
		}
		return fn(ctx, typed)
	})
}

// Start subscribes to every post topic. ctx is passed to handlers.
// On failure, topics already subscribed are released.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx != nil {
		return ErrAlreadyStarted
	}

	for _, stream := range protocol.Streams() {
		topic := r.topics.Post(stream)
		if err := r.transport.Subscribe(topic, r.qos, r.streamHandler(stream)); err != nil {
			if len(r.subscribed) > 0 {
				_ = r.transport.Unsubscribe(r.subscribed...)
				r.subscribed = nil
			}
			return fmt.Errorf("%w: %s: %w", ErrSubscribe, topic, err)
		}
		r.subscribed = append(r.subscribed, topic)
	}

	r.ctx = ctx
	r.logger.Info("router started", "topics", len(r.subscribed), "handlers", len(r.handlers))
	return nil
}

// Stop unsubscribes from the post topics.
func (r *Router) Stop() error {
	r.mu.Lock()
	topics := r.subscribed
	r.subscribed = nil
	r.mu.Unlock()

	if len(topics) == 0 {
		return nil
	}
	return r.transport.Unsubscribe(topics...)
}

func (r *Router) streamHandler(stream protocol.Stream) func(string, []byte) error {
	return func(_ string, payload []byte) error {
		r.mu.Lock()
		ctx := r.ctx
		r.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}
		r.Dispatch(ctx, stream, payload)
		return nil
	}
}

// Dispatch decodes payload received on stream and runs its handler.
// Failures are logged; nothing here is fatal.
func (r *Router) Dispatch(ctx context.Context, stream protocol.Stream, payload []byte) {
	msg, err := r.codec.Decode(stream, payload)
	switch {
	case errors.Is(err, protocol.ErrUnknownCommand):
		r.logger.Warn("router: unknown command", "stream", stream, "error", err)
		return
	case err != nil:
		r.logger.Warn("router: dropping undecodable message", "stream", stream, "error", err)
		return
	}

	cmd := msg.Command()
	if cmd.Stream() != stream {
		r.logger.Debug("router: command on foreign stream", "command", cmd, "stream", stream, "declared", cmd.Stream())
	}

	h, ok := r.handlers[cmd]
	if !ok {
		r.logger.Debug("router: unhandled command", "command", cmd, "stream", stream)
		return
	}
	if err := h(ctx, msg); err != nil {
		r.logger.Error("router: handler failed", "command", cmd, "error", err)
	}
}

// Send encodes msg and publishes it on the command's sub topic.
func (r *Router) Send(ctx context.Context, msg protocol.Outgoing) error {
	return r.send(ctx, r.topics.Sub(msg.Command().SendStream()), msg)
}

// Broadcast encodes msg and publishes it on the broadcast topic.
func (r *Router) Broadcast(ctx context.Context, msg protocol.Outgoing) error {
	return r.send(ctx, r.topics.Broadcast(), msg)
}

func (r *Router) send(ctx context.Context, topic string, msg protocol.Outgoing) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSend, msg.Command(), err)
	}
	data, err := r.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	if err := r.transport.Publish(topic, data, r.qos, false); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSend, msg.Command(), err)
	}
	r.logger.Debug("router: sent", "command", msg.Command(), "topic", topic)
	return nil
}
