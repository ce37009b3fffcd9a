package dto

import "time"

// RosterEntry is one line of an event roster.
type RosterEntry struct {
	UserID   string    `json:"user_id"`
	Status   string    `json:"status"`
	Position int       `json:"position,omitempty"`
	Since    time.Time `json:"since"`
}

// Roster lists registered users and the FIFO waitlist of an event.
type Roster struct {
	EventID    string        `json:"event_id"`
	EventName  string        `json:"event_name"`
	EventDate  time.Time     `json:"event_date"`
	Registered []RosterEntry `json:"registered"`
	Waitlist   []RosterEntry `json:"waitlist"`
}
