package domain

import "time"

// SeenEntry registra cuando un participante vio un mensaje.
type SeenEntry struct {
	UserID string    `json:"user_id"`
	SeenAt time.Time `json:"seen_at"`
}

type Message struct {
	ID        string      `json:"id"`
	ChatID    string      `json:"chat_id"`
	SenderID  string      `json:"sender_id"`
	Body      string      `json:"body"`
	SeenBy    []SeenEntry `json:"seen_by"`
	CreatedAt time.Time   `json:"created_at"`
}

// SeenByUser indica si userID aparece en seenBy.
func (m Message) SeenByUser(userID string) bool {
	for _, s := range m.SeenBy {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

// UnseenBy es true cuando el mensaje es de otro participante y userID todavia no lo vio.
func (m Message) UnseenBy(userID string) bool {
	return m.SenderID != userID && !m.SeenByUser(userID)
}

// CountUnread cuenta los mensajes no vistos por userID.
func CountUnread(messages []Message, userID string) int {
	n := 0
	for _, m := range messages {
		if m.UnseenBy(userID) {
			n++
		}
	}
	return n
}

// MessageDraft es un envio todavia no confirmado. El store asigna CreatedAt dentro
// de la transaccion, despues de bloquear el chat, asi el orden de los timestamps
// coincide con el orden de commit.
type MessageDraft struct {
	ID         string
	ChatID     string
	SenderID   string
	SenderName string
	Body       string

	// NewChat, si no es nil, se crea en la misma transaccion que el mensaje. Si ya
	// existe un chat con la misma clave de participantes se usa ese.
	NewChat *Chat
}

// AppendResult es lo que quedo confirmado: el chat con su vista previa y el mensaje.
type AppendResult struct {
	Chat        Chat
	Message     Message
	ChatCreated bool
}

// NextMessageTime devuelve now, o un microsegundo despues de la vista previa actual
// si el reloj quedo atras. Los mensajes de un chat quedan estrictamente ordenados.
func NextMessageTime(now time.Time, last *LastMessage) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if last != nil && !now.After(last.CreatedAt) {
		return last.CreatedAt.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return now
}

// Commit construye el mensaje y la vista previa confirmados en el instante at.
func (d MessageDraft) Commit(chatID string, at time.Time) (Message, LastMessage) {
	msg := Message{
		ID:        d.ID,
		ChatID:    chatID,
		SenderID:  d.SenderID,
		Body:      d.Body,
		SeenBy:    []SeenEntry{{UserID: d.SenderID, SeenAt: at}},
		CreatedAt: at,
	}
	preview := LastMessage{
		ID:          d.ID,
		SenderID:    d.SenderID,
		SenderName:  d.SenderName,
		Body:        d.Body,
		SeenByNames: []string{d.SenderName},
		CreatedAt:   at,
	}
	return msg, preview
}
