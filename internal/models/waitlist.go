package models

import "time"

// WaitlistStatus enumerates waitlist entry states.
type WaitlistStatus string

const (
	WaitlistWaiting  WaitlistStatus = "waiting"
	WaitlistNotified WaitlistStatus = "notified"
)

// WaitlistEntry is a FIFO slot for a user waiting on a full event.
// Seq breaks ties between entries sharing a creation timestamp.
type WaitlistEntry struct {
	ID         string         `db:"id" json:"id"`
	Seq        int64          `db:"seq" json:"-"`
	EventID    string         `db:"event_id" json:"event_id"`
	UserID     string         `db:"user_id" json:"user_id"`
	Status     WaitlistStatus `db:"status" json:"status"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	NotifiedAt *time.Time     `db:"notified_at" json:"notified_at,omitempty"`
}
