package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAlreadyRecorded is returned by a Writer when a record for the same
// identifier and session already exists.
var ErrAlreadyRecorded = errors.New("attendance already recorded")

// Reason is the machine-readable code of a rejected submission.
type Reason string

const (
	MissingIdentifier Reason = "MissingIdentifier"
	NoActiveSession   Reason = "NoActiveSession"
	SessionMismatch   Reason = "SessionMismatch"
	NotRegistered     Reason = "NotRegistered"
	AlreadyRecorded   Reason = "AlreadyRecorded"
	StoreUnavailable  Reason = "StoreUnavailable"
	WriteFailed       Reason = "WriteFailed"
)

// Fault reports whether the reason is a collaborator failure rather than an
// input error or policy rejection.
func (r Reason) Fault() bool {
	return r == StoreUnavailable || r == WriteFailed
}

// Rejection explains why a submission was not recorded.
type Rejection struct {
	Reason  Reason
	Message string
	// Session is the currently active session, when one was resolved.
	Session string
	Err     error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s: %v", r.Reason, r.Message, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

func (r *Rejection) Unwrap() error { return r.Err }

// Record is one persisted check-in.
type Record struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Session    string    `json:"session"`
	Timestamp  time.Time `json:"timestamp"`
}

// Receipt confirms a recorded check-in to the caller.
type Receipt struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Session    string    `json:"session"`
	Timestamp  time.Time `json:"timestamp"`
}

// Message is the user-facing confirmation text.
func (r Receipt) Message() string {
	return "Attendance recorded for " + r.Session
}

// Registry answers whether an identifier may check in.
type Registry interface {
	IsRegistered(ctx context.Context, identifier string) (bool, error)
}

// Lookup answers whether a record exists for identifier in session.
type Lookup interface {
	Exists(ctx context.Context, identifier, session string) (bool, error)
}

// Writer persists records. Implementations must reject a second record for
// the same identifier and session with ErrAlreadyRecorded.
type Writer interface {
	Append(ctx context.Context, rec Record) error
}

// ListFilter narrows List results.
type ListFilter struct {
	Session string
	Limit   int
}

// Reader is the read side used by the dashboard.
type Reader interface {
	CountsBySession(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, filter ListFilter) ([]Record, error)
}

// Store is a complete attendance backend.
type Store interface {
	Registry
	Lookup
	Writer
	Reader
	Register(ctx context.Context, identifiers ...string) error
	Ping(ctx context.Context) error
}

// NormalizeIdentifier trims and upper-cases an attendee identifier.
func NormalizeIdentifier(identifier string) string {
	return strings.ToUpper(strings.TrimSpace(identifier))
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
