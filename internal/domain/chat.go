package domain

import (
	"sort"
	"strings"
	"time"
)

// NewChatSentinel es el valor que usan los clientes cuando todavia no tienen un chat.
const NewChatSentinel = "new"

// Chat es un hilo de conversacion con un conjunto fijo de participantes.
type Chat struct {
	ID             string       `json:"id"`
	Participants   []string     `json:"participants"`
	ParticipantKey string       `json:"-"`
	LastMessage    *LastMessage `json:"last_message,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// LastMessage es una proyeccion cacheada del ultimo mensaje confirmado del chat.
// Siempre corresponde al ultimo Message escrito en la misma transaccion.
type LastMessage struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	Body        string    `json:"body"`
	SeenByNames []string  `json:"seen_by_names"`
	CreatedAt   time.Time `json:"created_at"`
}

// ThreadSummary es la vista de la lista de hilos de un usuario.
type ThreadSummary struct {
	Chat        Chat         `json:"chat"`
	LastMessage *LastMessage `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_count"`
}

// HasParticipant indica si userID forma parte del chat.
func (c Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// NormalizeParticipants recorta, descarta vacios, deduplica y ordena los ids.
func NormalizeParticipants(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ParticipantKey es la clave canonica de un conjunto de participantes: dos chats
// tienen la misma clave si y solo si sus conjuntos son iguales.
func ParticipantKey(ids []string) string {
	return strings.Join(NormalizeParticipants(ids), ",")
}

// IsNewChatID indica si el id recibido pide resolver o crear el chat.
func IsNewChatID(id string) bool {
	id = strings.TrimSpace(id)
	return id == "" || strings.EqualFold(id, NewChatSentinel)
}
