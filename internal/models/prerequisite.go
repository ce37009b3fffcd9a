package models

import "time"

// Prerequisite is a directed edge: EventID requires PrerequisiteEventID.
type Prerequisite struct {
	ID                  string    `db:"id" json:"id"`
	EventID             string    `db:"event_id" json:"event_id"`
	PrerequisiteEventID string    `db:"prerequisite_event_id" json:"prerequisite_event_id"`
	MinimumPerformance  float64   `db:"minimum_performance" json:"minimum_performance"`
	QualificationPeriod int       `db:"qualification_period" json:"qualification_period"`
	IsWaiverAllowed     bool      `db:"is_waiver_allowed" json:"is_waiver_allowed"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// PrerequisiteEdge is a prerequisite joined with the event on its far side
// (the required event for requirement lookups, the dependent event for dependents).
type PrerequisiteEdge struct {
	Prerequisite
	RelatedEventName string    `db:"related_event_name" json:"related_event_name"`
	RelatedEventDate time.Time `db:"related_event_date" json:"related_event_date"`
}

// QualifyingRecord is one completed registration of a user paired with one session of that event.
type QualifyingRecord struct {
	EventID     string             `db:"event_id"`
	Status      RegistrationStatus `db:"status"`
	Attendance  float64            `db:"attendance"`
	SessionDate time.Time          `db:"session_date"`
}
