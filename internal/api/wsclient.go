package api

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/plaf203-core/internal/infrastructure/config"
	"github.com/nerrad567/plaf203-core/internal/session"
)

// WSClient is one connected WebSocket client.
type WSClient struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	subject string // token subject, "anonymous" with auth disabled

	mu    sync.RWMutex
	all   bool
	kinds map[session.EventKind]struct{}
}

func newWSClient(hub *Hub, conn *websocket.Conn, subject string) *WSClient {
	return &WSClient{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, wsSendBufferSize),
		subject: subject,
		kinds:   make(map[session.EventKind]struct{}),
	}
}

// wsKeepalive holds the connection timings derived from config.
type wsKeepalive struct {
	readLimit int64
	ping      time.Duration
	readWait  time.Duration // ping interval plus pong timeout
	writeWait time.Duration
}

func newWSKeepalive(cfg config.WebSocketConfig) wsKeepalive {
	ping := time.Duration(cfg.PingInterval) * time.Second
	pong := time.Duration(cfg.PongTimeout) * time.Second
	return wsKeepalive{
		readLimit: int64(cfg.MaxMessageSize),
		ping:      ping,
		readWait:  ping + pong,
		writeWait: pong,
	}
}

// readPump handles client frames until the connection fails.
func (c *WSClient) readPump(k wsKeepalive) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(k.readWait)) }

	c.conn.SetReadLimit(k.readLimit)
	extend() //nolint:errcheck // a failed deadline surfaces on the next read
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "subject", c.subject, "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any frame counts as alive.
		extend() //nolint:errcheck // a failed deadline surfaces on the next read
		c.handleMessage(data)
	}
}

// writePump drains the send queue and pings the client.
func (c *WSClient) writePump(k wsKeepalive) {
	ticker := time.NewTicker(k.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(messageType int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(k.writeWait)) //nolint:errcheck // write reports it
		return c.conn.WriteMessage(messageType, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.handleSubscribe(msg)
	case WSTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// channels decodes and validates the channel list of a (un)subscribe message.
func channels(msg WSMessage) ([]string, error) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("invalid payload")
	}
	var p WSSubscribePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid %s payload", msg.Type)
	}
	if len(p.Channels) == 0 {
		return nil, fmt.Errorf("no channels given")
	}
	for _, ch := range p.Channels {
		if !validChannel(ch) {
			return nil, fmt.Errorf("unknown channel: %s", ch)
		}
	}
	return p.Channels, nil
}

// handleSubscribe adds channels. The response carries the current session
// status when the hub has a snapshot source.
func (c *WSClient) handleSubscribe(msg WSMessage) {
	chs, err := channels(msg)
	if err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}

	c.mu.Lock()
	for _, ch := range chs {
		if ch == WSChannelAll {
			c.all = true
			continue
		}
		c.kinds[session.EventKind(ch)] = struct{}{}
	}
	c.mu.Unlock()

	c.hub.logger.Info("websocket client subscribed", "channels", chs, "subject", c.subject)

	resp := map[string]any{"subscribed": chs}
	if st, ok := c.hub.currentStatus(); ok {
		resp["status"] = st
	}
	c.reply(msg.ID, WSTypeResponse, resp)
}

func (c *WSClient) handleUnsubscribe(msg WSMessage) {
	chs, err := channels(msg)
	if err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}

	c.mu.Lock()
	for _, ch := range chs {
		if ch == WSChannelAll {
			c.all = false
			continue
		}
		delete(c.kinds, session.EventKind(ch))
	}
	c.mu.Unlock()

	c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": chs})
}

// wants reports whether the client is subscribed to kind, directly or
// through the wildcard.
func (c *WSClient) wants(kind session.EventKind) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.all {
		return true
	}
	_, ok := c.kinds[kind]
	return ok
}

// trySend queues data without blocking. It reports false when the queue is
// full; a send racing with disconnect is absorbed.
func (c *WSClient) trySend(data []byte) (queued bool) {
	defer func() {
		if recover() != nil {
			queued = true
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
