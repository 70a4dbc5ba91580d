package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"checkin/internal/session"
)

// Service validates check-in submissions and records accepted ones.
type Service struct {
	resolver *session.Resolver
	registry Registry
	lookup   Lookup
	writer   Writer
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the wall clock used for resolution and timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a validator over the given collaborators.
func NewService(resolver *session.Resolver, registry Registry, lookup Lookup, writer Writer, opts ...ServiceOption) *Service {
	s := &Service{
		resolver: resolver,
		registry: registry,
		lookup:   lookup,
		writer:   writer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStoreService wires every collaborator to a single backend.
func NewStoreService(resolver *session.Resolver, store Store, opts ...ServiceOption) *Service {
	return NewService(resolver, store, store, store, opts...)
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time { return s.now() }

// LocalClock returns the local date and HH:MM the resolver sees now.
func (s *Service) LocalClock() (date, clock string) {
	return s.resolver.Clock(s.now())
}

// Active returns the session active right now.
func (s *Service) Active() (session.Session, bool) {
	return s.resolver.Active(s.now())
}

// Submit runs the check-in pipeline for identifier against the claimed
// session. Checks stop at the first failure. Every error returned is a
// *Rejection.
func (s *Service) Submit(ctx context.Context, identifier, claimed string) (Receipt, error) {
	id := NormalizeIdentifier(identifier)
	if id == "" {
		return Receipt{}, &Rejection{Reason: MissingIdentifier, Message: "Missing matric number"}
	}

	now := s.now()
	active, ok := s.resolver.Active(now)
	if !ok {
		return Receipt{}, &Rejection{Reason: NoActiveSession, Message: "No active session at this time"}
	}
	if !session.SameValue(active.Value, claimed) {
		return Receipt{}, &Rejection{
			Reason:  SessionMismatch,
			Message: "You can only check in during the active session: " + active.Value,
			Session: active.Value,
		}
	}

	registered, err := s.registry.IsRegistered(ctx, id)
	if err != nil {
		return Receipt{}, &Rejection{Reason: StoreUnavailable, Message: "Database error", Session: active.Value, Err: err}
	}
	if !registered {
		return Receipt{}, &Rejection{Reason: NotRegistered, Message: "Matric not registered", Session: active.Value}
	}

	exists, err := s.lookup.Exists(ctx, id, active.Value)
	if err != nil {
		return Receipt{}, &Rejection{Reason: StoreUnavailable, Message: "Database error", Session: active.Value, Err: err}
	}
	if exists {
		return Receipt{}, alreadyRecorded(active.Value, nil)
	}

	rec := Record{
		ID:         uuid.NewString(),
		Identifier: id,
		Session:    active.Value,
		Timestamp:  now.UTC(),
	}
	if err := s.writer.Append(ctx, rec); err != nil {
		// A concurrent submission won the insert.
		if errors.Is(err, ErrAlreadyRecorded) {
			return Receipt{}, alreadyRecorded(active.Value, err)
		}
		return Receipt{}, &Rejection{Reason: WriteFailed, Message: "Failed to record attendance", Session: active.Value, Err: err}
	}

	return Receipt{ID: rec.ID, Identifier: rec.Identifier, Session: rec.Session, Timestamp: rec.Timestamp}, nil
}

func alreadyRecorded(active string, err error) *Rejection {
	return &Rejection{
		Reason:  AlreadyRecorded,
		Message: "Attendance already recorded for " + active,
		Session: active,
		Err:     err,
	}
}
