package dto

import "time"

// CreateEventRequest carries the fields accepted when an organizer creates an event.
type CreateEventRequest struct {
	ActivityGroupName    string     `json:"activity_group_name" validate:"required,max=200"`
	EventDate            time.Time  `json:"event_date" validate:"required"`
	MaxParticipants      *int       `json:"max_participants"`
	Cost                 float64    `json:"cost"`
	RegistrationRequired bool       `json:"registration_required"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	LocationID           *string    `json:"location_id"`
}

// UpdateEventRequest lists every mutable event field; nil leaves the field unchanged.
// The Clear* flags reset optional fields to absent.
type UpdateEventRequest struct {
	ActivityGroupName         *string    `json:"activity_group_name" validate:"omitempty,min=1,max=200"`
	EventDate                 *time.Time `json:"event_date"`
	MaxParticipants           *int       `json:"max_participants"`
	ClearMaxParticipants      bool       `json:"clear_max_participants"`
	Cost                      *float64   `json:"cost"`
	RegistrationRequired      *bool      `json:"registration_required"`
	RegistrationDeadline      *time.Time `json:"registration_deadline"`
	ClearRegistrationDeadline bool       `json:"clear_registration_deadline"`
	LocationID                *string    `json:"location_id"`
	ClearLocation             bool       `json:"clear_location"`
}

// Empty reports whether the request changes nothing.
func (r UpdateEventRequest) Empty() bool {
	return r.ActivityGroupName == nil && r.EventDate == nil && r.MaxParticipants == nil &&
		!r.ClearMaxParticipants && r.Cost == nil && r.RegistrationRequired == nil &&
		r.RegistrationDeadline == nil && !r.ClearRegistrationDeadline &&
		r.LocationID == nil && !r.ClearLocation
}

// EventListQuery is bound from list query parameters.
type EventListQuery struct {
	Search   string `form:"search"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// DeletionSummary reports what a cascading delete removed.
type DeletionSummary struct {
	EventID       string `json:"event_id"`
	Prerequisites int64  `json:"prerequisites"`
	Registrations int64  `json:"registrations"`
	WaitlistItems int64  `json:"waitlist_entries"`
	Sessions      int64  `json:"sessions"`
}
