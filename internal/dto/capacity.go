package dto

import "time"

// CapacitySnapshot is a point-in-time view of an event's occupancy.
type CapacitySnapshot struct {
	EventID         string    `json:"event_id"`
	MaxParticipants *int      `json:"max_participants,omitempty"`
	Registered      int       `json:"registered"`
	Waitlisted      int       `json:"waitlisted"`
	Available       *int      `json:"available,omitempty"`
	Full            bool      `json:"full"`
	GeneratedAt     time.Time `json:"generated_at"`
}
