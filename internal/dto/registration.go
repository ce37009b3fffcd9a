package dto

import "time"

// RegistrationResult is the outcome reported by register.
type RegistrationResult string

const (
	ResultRegistered RegistrationResult = "REGISTERED"
	ResultWaitlisted RegistrationResult = "WAITLISTED"
)

// RegistrationOutcome describes the persisted result of a registration request.
type RegistrationOutcome struct {
	EventID          string             `json:"event_id"`
	UserID           string             `json:"user_id"`
	Result           RegistrationResult `json:"result"`
	RegistrationID   string             `json:"registration_id,omitempty"`
	WaitlistID       string             `json:"waitlist_id,omitempty"`
	WaitlistPosition int                `json:"waitlist_position,omitempty"`
}

// CancellationOutcome reports what a cancellation changed. Cancelled is false when
// the user held no active registration.
type CancellationOutcome struct {
	EventID        string  `json:"event_id"`
	UserID         string  `json:"user_id"`
	Cancelled      bool    `json:"cancelled"`
	PromotedUserID *string `json:"promoted_user_id,omitempty"`
}

// WithdrawalOutcome reports whether a waitlist entry was removed.
type WithdrawalOutcome struct {
	EventID   string `json:"event_id"`
	UserID    string `json:"user_id"`
	Withdrawn bool   `json:"withdrawn"`
}

// WaitlistOffer identifies the entrant offered a spot by notify.
type WaitlistOffer struct {
	EventID    string    `json:"event_id"`
	EventName  string    `json:"event_name"`
	EventDate  time.Time `json:"event_date"`
	EntryID    string    `json:"entry_id"`
	UserID     string    `json:"user_id"`
	NotifiedAt time.Time `json:"notified_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ExpirySummary is returned by the offer-expiry sweep.
type ExpirySummary struct {
	Expired  int             `json:"expired"`
	Reoffers []WaitlistOffer `json:"reoffers"`
}
