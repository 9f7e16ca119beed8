package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/skilllink/skilllink-api/internal/models"
)

// Envelope is the frame exchanged with websocket clients in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Emitter delivers named events to rooms.
type Emitter interface {
	Emit(room, event string, data any)
}

// delivery is also the wire format of the cross-instance relay.
type delivery struct {
	Room    string          `json:"room,omitempty"`
	All     bool            `json:"all,omitempty"`
	Except  string          `json:"except,omitempty"`
	Client  string          `json:"client,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type membership struct {
	client *Client
	room   string
}

type removal struct {
	client *Client
	ack    chan struct{}
}

type Hub struct {
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	mu      sync.RWMutex

	register   chan *Client
	unregister chan removal
	join       chan membership
	leave      chan membership
	deliver    chan delivery
	done       chan struct{}

	relay    *RedisRelay
	presence *Presence
	log      *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan removal),
		join:       make(chan membership),
		leave:      make(chan membership),
		deliver:    make(chan delivery, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// UseRelay routes every emit through the relay so that all instances,
// this one included, deliver it.
func (h *Hub) UseRelay(r *RedisRelay) {
	h.relay = r
}

// UsePresence makes IsOnline consult cluster-wide presence as well.
func (h *Hub) UsePresence(p *Presence) {
	h.presence = p
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.Send)
			}
			h.clients = map[*Client]struct{}{}
			h.rooms = map[string]map[*Client]struct{}{}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.log.Debug("ws client registered", zap.String("client", c.ID), zap.String("role", string(c.Principal.Role)))

		case r := <-h.unregister:
			c := r.client
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				for room := range c.rooms {
					h.removeLocked(c, room)
				}
				delete(h.clients, c)
				close(c.Send)
			}
			h.mu.Unlock()
			close(r.ack)
			h.log.Debug("ws client unregistered", zap.String("client", c.ID))

		case m := <-h.join:
			h.mu.Lock()
			if _, ok := h.clients[m.client]; ok {
				members := h.rooms[m.room]
				if members == nil {
					members = make(map[*Client]struct{})
					h.rooms[m.room] = members
				}
				members[m.client] = struct{}{}
				m.client.rooms[m.room] = struct{}{}
			}
			h.mu.Unlock()

		case m := <-h.leave:
			h.mu.Lock()
			h.removeLocked(m.client, m.room)
			h.mu.Unlock()

		case d := <-h.deliver:
			h.dispatch(d)
		}
	}
}

func (h *Hub) removeLocked(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) dispatch(d delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.rooms[d.Room]
	if d.All || d.Client != "" {
		targets = h.clients
	}
	for c := range targets {
		if d.Except != "" && c.ID == d.Except {
			continue
		}
		if d.Client != "" && c.ID != d.Client {
			continue
		}
		select {
		case c.Send <- d.Payload:
		default:
			// slow consumer, drop rather than block the hub
		}
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes c from every room and closes its Send channel. It
// returns once the removal is visible to Online.
func (h *Hub) Unregister(c *Client) {
	r := removal{client: c, ack: make(chan struct{})}
	select {
	case h.unregister <- r:
	case <-h.done:
		return
	}
	select {
	case <-r.ack:
	case <-h.done:
	}
}

func (h *Hub) Join(c *Client, room string) {
	select {
	case h.join <- membership{client: c, room: room}:
	case <-h.done:
	}
}

func (h *Hub) Leave(c *Client, room string) {
	select {
	case h.leave <- membership{client: c, room: room}:
	case <-h.done:
	}
}

// Emit sends an event to every member of room.
func (h *Hub) Emit(room, event string, data any) {
	h.send(delivery{Room: room}, event, data)
}

// EmitExcept sends an event to every member of room except the given client.
func (h *Hub) EmitExcept(room, event string, data any, except *Client) {
	d := delivery{Room: room}
	if except != nil {
		d.Except = except.ID
	}
	h.send(d, event, data)
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(event string, data any) {
	h.send(delivery{All: true}, event, data)
}

// Reply sends an event to one local client. It never crosses instances.
func (h *Hub) Reply(c *Client, event string, data any) {
	payload, err := encode(event, data)
	if err != nil {
		h.log.Error("ws encode failed", zap.String("event", event), zap.Error(err))
		return
	}
	h.enqueue(delivery{Client: c.ID, Payload: payload})
}

func (h *Hub) send(d delivery, event string, data any) {
	payload, err := encode(event, data)
	if err != nil {
		h.log.Error("ws encode failed", zap.String("event", event), zap.Error(err))
		return
	}
	d.Payload = payload

	if h.relay != nil {
		err := h.relay.Publish(context.Background(), d)
		if err == nil {
			return
		}
		h.log.Warn("ws relay publish failed, delivering locally", zap.Error(err))
	}
	h.enqueue(d)
}

func (h *Hub) enqueue(d delivery) {
	select {
	case h.deliver <- d:
	case <-h.done:
	}
}

// Online reports whether any local client is in room.
func (h *Hub) Online(room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room]) > 0
}

// IsOnline reports whether p holds a socket here or, with presence
// configured, on any instance.
func (h *Hub) IsOnline(ctx context.Context, p models.Principal) (bool, error) {
	if h.Online(RoomOf(p)) {
		return true, nil
	}
	if h.presence == nil {
		return false, nil
	}
	return h.presence.IsOnline(ctx, p)
}

// RoomSize is the number of local clients in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
