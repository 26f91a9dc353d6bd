package domain

import "time"

// BufferedLine is a recently displayed chat line kept for re-evaluation
type BufferedLine struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chat_id,omitempty"`
	Text       string    `json:"text"` // Raw text as received
	Sender     string    `json:"sender"`
	ReceivedAt time.Time `json:"received_at"`
	Decision   Decision  `json:"decision"`
}
