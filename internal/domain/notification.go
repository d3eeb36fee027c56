package domain

import "time"

// Notification es una entrada del inbox de un unico destinatario.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Message     string    `json:"message"`
	Link        string    `json:"link,omitempty"`
	Read        bool      `json:"read"`
	DedupKey    string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
