package models

import "time"

// RegistrationStatus enumerates registration lifecycle states.
type RegistrationStatus string

const (
	RegistrationRegistered RegistrationStatus = "registered"
	RegistrationCompleted  RegistrationStatus = "completed"
	RegistrationCancelled  RegistrationStatus = "cancelled"
)

// Registration binds a user to an event.
type Registration struct {
	ID          string             `db:"id" json:"id"`
	EventID     string             `db:"event_id" json:"event_id"`
	UserID      string             `db:"user_id" json:"user_id"`
	Status      RegistrationStatus `db:"status" json:"status"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	CompletedAt *time.Time         `db:"completed_at" json:"completed_at,omitempty"`
}
