package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pollevbot/backend/internal/session"
)

type client struct {
	conn  *websocket.Conn
	send  chan []byte
	token string
}

func newClient(conn *websocket.Conn, token string) *client {
	c := &client{
		conn:  conn,
		send:  make(chan []byte, 64),
		token: token,
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster streams session log events to attached websocket clients.
// A flush loop drains each watched session's buffer on an interval and
// fans the batch out to that session's clients. Sessions with no attached
// clients are left alone: their buffers keep retaining events for the REST
// drain endpoint.
type Broadcaster struct {
	mu        sync.RWMutex
	clients   map[*client]bool
	lastState map[string]session.State

	registry *session.Registry
	interval time.Duration
	log      zerolog.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

func NewBroadcaster(registry *session.Registry, interval time.Duration, log zerolog.Logger) *Broadcaster {
	if interval <= 0 {
		interval = time.Second
	}
	b := &Broadcaster{
		clients:   make(map[*client]bool),
		lastState: make(map[string]session.State),
		registry:  registry,
		interval:  interval,
		log:       log,
		stop:      make(chan struct{}),
	}
	go b.flushLoop()
	return b
}

// Close stops the flush loop and disconnects all clients.
func (b *Broadcaster) Close() {
	b.stopOnce.Do(func() { close(b.stop) })
	b.mu.Lock()
	for c := range b.clients {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// AddClient attaches a websocket connection to the session identified by
// token and sends it a hello snapshot.
func (b *Broadcaster) AddClient(conn *websocket.Conn, h *session.Handle) *client {
	c := newClient(conn, h.Token)

	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	hello := WSMessage{
		Type: MsgHello,
		Payload: HelloPayload{
			Token:     h.Token,
			State:     h.Runner.State(),
			Alive:     h.Runner.Alive(),
			StartedAt: h.StartedAt,
		},
	}
	data, _ := json.Marshal(hello)

	select {
	case c.send <- data:
	default:
	}

	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) flushLoop() {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}

// Flush drains the buffer of every session that has at least one attached
// client and broadcasts the batch. Also exported for tests to force a flush
// without waiting out the interval.
func (b *Broadcaster) Flush() {
	b.mu.RLock()
	byToken := make(map[string][]*client)
	for c := range b.clients {
		byToken[c.token] = append(byToken[c.token], c)
	}
	b.mu.RUnlock()

	for token, clients := range byToken {
		h, ok := b.registry.Lookup(token)
		if !ok {
			// Session stopped and removed while clients were attached.
			b.sendTo(clients, WSMessage{Type: MsgGone, Payload: GonePayload{Token: token}})
			for _, c := range clients {
				b.RemoveClient(c)
			}
			b.mu.Lock()
			delete(b.lastState, token)
			b.mu.Unlock()
			continue
		}

		events := h.Log.Drain()
		state := h.Runner.State()

		b.mu.Lock()
		last, seen := b.lastState[token]
		b.lastState[token] = state
		b.mu.Unlock()

		if len(events) == 0 && seen && last == state {
			continue
		}

		b.sendTo(clients, WSMessage{
			Type: MsgLogs,
			Payload: LogsPayload{
				Token:  token,
				State:  state,
				Alive:  h.Runner.Alive(),
				Events: events,
			},
		})
	}
}

func (b *Broadcaster) sendTo(clients []*client, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.log.Error().Err(err).Msg("broadcast marshal error")
		return
	}
	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			b.log.Warn().Str("token", c.token).Msg("ws client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}
