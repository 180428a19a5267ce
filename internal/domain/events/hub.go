package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// EventType for coin wallet WebSocket events
type EventType string

const (
	EventCoinsEarned     EventType = "coins_earned"
	EventCoinsSpent      EventType = "coins_spent"
	EventCoinsExpired    EventType = "coins_expired"
	EventCoinsRefunded   EventType = "coins_refunded"
	EventStreakMilestone EventType = "streak_milestone"
)

const eventsChannel = "coins:events"

// Event is pushed to a user's open connections whenever their balance moves.
type Event struct {
	Type    EventType   `json:"type"`
	UserID  uuid.UUID   `json:"user_id"`
	Amount  int64       `json:"amount,omitempty"`
	Balance int64       `json:"balance"`
	Source  string      `json:"source,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type envelope struct {
	Event    Event  `json:"event"`
	Instance string `json:"instance"`
}

// Connection represents one WebSocket client
type Connection struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans coin events out to connected clients. With Redis configured the
// fan-out crosses replicas over pub/sub; without it events only reach
// clients connected to this instance.
type Hub struct {
	connections map[uuid.UUID]map[*Connection]bool
	mu          sync.RWMutex

	redis  *redis.Client
	pubsub *redis.PubSub

	register   chan *Connection
	unregister chan *Connection

	ctx        context.Context
	cancel     context.CancelFunc
	instanceID string
}

func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		redis:       redisClient,
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		ctx:         ctx,
		cancel:      cancel,
		instanceID:  uuid.NewString(),
	}

	if redisClient != nil {
		h.pubsub = redisClient.Subscribe(ctx, eventsChannel)
	}
	return h
}

// Run processes connection registration and cross-instance events.
// Call in a goroutine.
func (h *Hub) Run() {
	var remote <-chan *redis.Message
	if h.pubsub != nil {
		remote = h.pubsub.Channel()
	}

	for {
		select {
		case <-h.ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.connections[conn.UserID] == nil {
				h.connections[conn.UserID] = make(map[*Connection]bool)
			}
			h.connections[conn.UserID][conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns := h.connections[conn.UserID]; conns != nil {
				if conns[conn] {
					delete(conns, conn)
					close(conn.Send)
				}
				if len(conns) == 0 {
					delete(h.connections, conn.UserID)
				}
			}
			h.mu.Unlock()

		case msg, ok := <-remote:
			if !ok {
				remote = nil
				continue
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}
			if env.Instance == h.instanceID {
				// Already delivered locally when published.
				continue
			}
			h.deliverLocal(env.Event)
		}
	}
}

// Publish delivers an event to the user's local connections and broadcasts
// it to the other instances. Best effort: a slow client or a Redis hiccup
// never fails the ledger write that triggered the event.
func (h *Hub) Publish(ctx context.Context, event Event) {
	h.deliverLocal(event)

	if h.redis == nil {
		return
	}
	payload, err := json.Marshal(envelope{Event: event, Instance: h.instanceID})
	if err != nil {
		return
	}
	if err := h.redis.Publish(ctx, eventsChannel, payload).Err(); err != nil {
		log.Warn().Err(err).Str("type", string(event.Type)).Msg("failed to publish coin event")
	}
}

func (h *Hub) deliverLocal(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.connections[event.UserID] {
		select {
		case conn.Send <- data:
		default:
			// Slow client; drop the event rather than block the hub.
		}
	}
}

// Register attaches a connection and starts its pumps.
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
	go conn.writePump()
	go conn.readPump(h)
}

// Close shuts the hub down.
func (h *Hub) Close() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Clients never send application messages; the read loop only services
	// control frames and detects disconnects.
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
