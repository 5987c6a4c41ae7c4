package models

import "time"

// Notification is a best-effort status-change message. Delivery never
// blocks or fails the state change that triggered it.
type Notification struct {
	ID          string    `db:"id" json:"id"`
	RecipientID string    `db:"recipient_id" json:"recipient_id"`
	Title       string    `db:"title" json:"title"`
	Message     string    `db:"message" json:"message"`
	ActorID     string    `db:"actor_id" json:"actor_id"`
	ActorRole   UserRole  `db:"actor_role" json:"actor_role"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
