package realtime

import (
	"context"
	"encoding/json"
)

// Nombres de eventos publicados en la sala de un chat.
const (
	EventMessageAppended = "message-appended"
	EventThreadUpdated   = "thread-updated"
	EventMessagesSeen    = "messages-seen"
)

// Publisher entrega un payload a todas las conexiones suscriptas a room.
// Dos publicaciones a la misma sala desde el mismo llamador llegan en orden.
type Publisher interface {
	Publish(ctx context.Context, room, event string, payload any) error
}

// Envelope es lo que recibe cada conexion.
type Envelope struct {
	Room    string `json:"room"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// wireEnvelope se usa al decodificar: el payload queda sin interpretar.
type wireEnvelope struct {
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// LocalPublisher publica directamente en el Hub del proceso.
type LocalPublisher struct {
	hub *Hub
}

func NewLocalPublisher(hub *Hub) *LocalPublisher {
	return &LocalPublisher{hub: hub}
}

func (p *LocalPublisher) Publish(ctx context.Context, room, event string, payload any) error {
	return p.hub.Broadcast(ctx, Envelope{Room: room, Event: event, Payload: payload})
}
