package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
)

var ErrHubClosed = errors.New("realtime hub closed")

// Hub mantiene las salas y sus conexiones. Todo el estado lo modifica una
// sola goroutine (Run), por eso el orden de entrega por sala se preserva.
type Hub struct {
	logger     *zap.Logger
	rooms      map[string]map[*Client]struct{}
	clients    map[*Client]map[string]struct{}
	register   chan *Client
	unregister chan *Client
	membership chan membershipChange
	direct     chan directMessage
	broadcast  chan Envelope
	done       chan struct{}
}

type directMessage struct {
	client  *Client
	payload []byte
}

type membershipChange struct {
	client *Client
	room   string
	join   bool
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:     logger,
		rooms:      make(map[string]map[*Client]struct{}),
		clients:    make(map[*Client]map[string]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		membership: make(chan membershipChange),
		direct:     make(chan directMessage, 64),
		broadcast:  make(chan Envelope, 256),
		done:       make(chan struct{}),
	}
}

// Run procesa registros, suscripciones y broadcasts hasta que ctx termina.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for client := range h.clients {
			close(client.send)
		}
		h.clients = map[*Client]map[string]struct{}{}
		h.rooms = map[string]map[*Client]struct{}{}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			if _, ok := h.clients[client]; !ok {
				h.clients[client] = make(map[string]struct{})
			}
		case client := <-h.unregister:
			h.drop(client)
		case change := <-h.membership:
			h.applyMembership(change)
		case msg := <-h.direct:
			if _, ok := h.clients[msg.client]; ok {
				select {
				case msg.client.send <- msg.payload:
				default:
				}
			}
		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Join suscribe el cliente a la sala.
func (h *Hub) Join(client *Client, room string) {
	select {
	case h.membership <- membershipChange{client: client, room: room, join: true}:
	case <-h.done:
	}
}

// Leave cancela la suscripción a la sala.
func (h *Hub) Leave(client *Client, room string) {
	select {
	case h.membership <- membershipChange{client: client, room: room}:
	case <-h.done:
	}
}

// sendTo entrega payload a un solo cliente (respuestas de control).
func (h *Hub) sendTo(client *Client, payload []byte) {
	select {
	case h.direct <- directMessage{client: client, payload: payload}:
	case <-h.done:
	}
}

// Broadcast encola env para su entrega a la sala env.Room.
func (h *Hub) Broadcast(ctx context.Context, env Envelope) error {
	select {
	case h.broadcast <- env:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) applyMembership(change membershipChange) {
	rooms, ok := h.clients[change.client]
	if !ok {
		return
	}
	if change.join {
		set, ok := h.rooms[change.room]
		if !ok {
			set = make(map[*Client]struct{})
			h.rooms[change.room] = set
		}
		set[change.client] = struct{}{}
		rooms[change.room] = struct{}{}
		return
	}
	delete(rooms, change.room)
	h.removeFromRoom(change.client, change.room)
}

func (h *Hub) deliver(env Envelope) {
	set, ok := h.rooms[env.Room]
	if !ok {
		return
	}
	encoded, err := json.Marshal(env)
	if err != nil {
		h.logger.Warn("realtime encode envelope", zap.Error(err), zap.String("room", env.Room), zap.String("event", env.Event))
		return
	}
	for client := range set {
		select {
		case client.send <- encoded:
		default:
			// Cliente lento: se desconecta en vez de bloquear la sala.
			h.logger.Warn("realtime client dropped", zap.String("user_id", client.userID), zap.String("room", env.Room))
			h.drop(client)
		}
	}
}

func (h *Hub) drop(client *Client) {
	rooms, ok := h.clients[client]
	if !ok {
		return
	}
	for room := range rooms {
		h.removeFromRoom(client, room)
	}
	delete(h.clients, client)
	close(client.send)
}

func (h *Hub) removeFromRoom(client *Client, room string) {
	set, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.rooms, room)
	}
}
