package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Taxonomy buckets reported by Kind.
const (
	KindNotFound           = "NotFound"
	KindConflict           = "Conflict"
	KindInvalidInput       = "InvalidInput"
	KindPreconditionFailed = "PreconditionFailed"
	KindUnauthorized       = "Unauthorized"
	KindForbidden          = "Forbidden"
	KindInternal           = "Internal"
)

// Generic errors.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Registration engine errors.
var (
	ErrEventNotFound         = New("EVENT_NOT_FOUND", http.StatusNotFound, "event not found")
	ErrPrerequisiteNotFound  = New("PREREQUISITE_NOT_FOUND", http.StatusNotFound, "prerequisite not found")
	ErrAlreadyRegistered     = New("ALREADY_REGISTERED", http.StatusConflict, "user is already registered for this event")
	ErrAlreadyWaitlisted     = New("ALREADY_WAITLISTED", http.StatusConflict, "user is already on the waitlist")
	ErrDuplicatePrerequisite = New("PREREQUISITE_EXISTS", http.StatusConflict, "this prerequisite already exists")
	ErrSelfPrerequisite      = New("PREREQUISITE_SELF_LOOP", http.StatusConflict, "an event cannot be its own prerequisite")
	ErrInvalidCapacity       = New("INVALID_CAPACITY", http.StatusBadRequest, "max participants and cost must be non-negative")
	ErrPrerequisitesUnmet    = New("PREREQUISITES_UNMET", http.StatusPreconditionFailed, "prerequisites for this event are not met")
	ErrNoWaitlistEntries     = New("NO_WAITLIST_ENTRIES", http.StatusPreconditionFailed, "no users on the waitlist")
	ErrNoNotificationFound   = New("NO_NOTIFICATION_FOUND", http.StatusPreconditionFailed, "no notification found for this user")
	ErrEventFull             = New("EVENT_FULL", http.StatusPreconditionFailed, "event has no open spots")
	ErrRegistrationClosed    = New("REGISTRATION_CLOSED", http.StatusPreconditionFailed, "registration deadline has passed")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithDetails returns a copy of err carrying a structured payload.
func WithDetails(err *Error, details interface{}) *Error {
	clone := Clone(err, "")
	if clone != nil {
		clone.Details = details
	}
	return clone
}

// HasCode reports whether err (or anything it wraps) is an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// Kind classifies err into the taxonomy bucket derived from its status.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	switch FromError(err).Status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusBadRequest:
		return KindInvalidInput
	case http.StatusPreconditionFailed:
		return KindPreconditionFailed
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	default:
		return KindInternal
	}
}
