package models

import "time"

// Event is a scheduled occurrence of an activity group with an optional participant cap.
type Event struct {
	ID                   string     `db:"id" json:"id"`
	ActivityGroupName    string     `db:"activity_group_name" json:"activity_group_name"`
	EventDate            time.Time  `db:"event_date" json:"event_date"`
	MaxParticipants      *int       `db:"max_participants" json:"max_participants,omitempty"`
	Cost                 float64    `db:"cost" json:"cost"`
	RegistrationRequired bool       `db:"registration_required" json:"registration_required"`
	RegistrationDeadline *time.Time `db:"registration_deadline" json:"registration_deadline,omitempty"`
	LocationID           *string    `db:"location_id" json:"location_id,omitempty"`
	CreatedBy            *string    `db:"created_by" json:"created_by,omitempty"`
	IsDeleted            bool       `db:"is_deleted" json:"is_deleted"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// Unlimited reports whether the event accepts any number of registrations.
func (e *Event) Unlimited() bool {
	return e.MaxParticipants == nil
}

// RegistrationClosed reports whether the registration deadline has passed at now.
func (e *Event) RegistrationClosed(now time.Time) bool {
	return e.RegistrationDeadline != nil && now.After(*e.RegistrationDeadline)
}

// EventFilter captures listing criteria for active events.
type EventFilter struct {
	Search   string
	From     *time.Time
	Page     int
	PageSize int
}
