package dto

import "time"

// CreateSessionRequest records an occurrence of an event.
type CreateSessionRequest struct {
	SessionDate time.Time `json:"session_date" validate:"required"`
	Attendance  float64   `json:"attendance" validate:"gte=0"`
}
