package models

import "time"

// Session records one occurrence of an event and the attendance score achieved.
type Session struct {
	ID          string    `db:"id" json:"id"`
	EventID     string    `db:"event_id" json:"event_id"`
	SessionDate time.Time `db:"session_date" json:"session_date"`
	Attendance  float64   `db:"attendance" json:"attendance"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
