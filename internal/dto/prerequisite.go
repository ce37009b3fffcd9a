package dto

import "time"

// CreatePrerequisiteRequest declares that EventID requires PrerequisiteEventID.
type CreatePrerequisiteRequest struct {
	EventID             string  `json:"event_id" validate:"required,uuid"`
	PrerequisiteEventID string  `json:"prerequisite_event_id" validate:"required,uuid"`
	MinimumPerformance  float64 `json:"minimum_performance" validate:"gte=0"`
	QualificationPeriod int     `json:"qualification_period" validate:"gte=0"`
	IsWaiverAllowed     bool    `json:"is_waiver_allowed"`
}

// UnmetPrerequisite describes one requirement the user has not satisfied.
type UnmetPrerequisite struct {
	PrerequisiteID      string    `json:"prerequisite_id"`
	EventID             string    `json:"event_id"`
	EventName           string    `json:"event_name"`
	EventDate           time.Time `json:"event_date"`
	MinimumPerformance  float64   `json:"minimum_performance"`
	QualificationPeriod int       `json:"qualification_period"`
	IsWaiverAllowed     bool      `json:"is_waiver_allowed"`
}

// PrerequisiteCheck is the evaluator result for a user and an event.
type PrerequisiteCheck struct {
	EventID   string              `json:"event_id"`
	UserID    string              `json:"user_id"`
	Satisfied bool                `json:"satisfied"`
	Unmet     []UnmetPrerequisite `json:"unmet"`
}
