package session

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCatalog is returned when a catalog fails validation at load time.
var ErrInvalidCatalog = errors.New("invalid session catalog")

// Session is a named daily time window during which check-ins are accepted.
// Start and End are zero-padded 24-hour "HH:MM" strings.
type Session struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// Overnight reports whether the window wraps past midnight.
func (s Session) Overnight() bool {
	return s.Start > s.End
}

// Catalog is an ordered, immutable list of sessions.
type Catalog struct {
	sessions []Session
}

// Default returns the catalog used when no sessions file is configured.
func Default() *Catalog {
	c, _ := NewCatalog([]Session{
		{Value: "AM Break", Label: "AM Break", Start: "10:00", End: "10:30"},
		{Value: "Lunch Break", Label: "Lunch Break", Start: "12:30", End: "14:00"},
		{Value: "PM Break", Label: "PM Break", Start: "23:00", End: "00:00"},
	})
	return c
}

// NewCatalog validates sessions and returns a catalog holding its own copy.
func NewCatalog(sessions []Session) (*Catalog, error) {
	if len(sessions) == 0 {
		return nil, fmt.Errorf("%w: no sessions", ErrInvalidCatalog)
	}
	seen := make(map[string]struct{}, len(sessions))
	out := make([]Session, 0, len(sessions))
	for i, s := range sessions {
		s.Value = strings.TrimSpace(s.Value)
		if s.Value == "" {
			return nil, fmt.Errorf("%w: session %d has no value", ErrInvalidCatalog, i)
		}
		key := strings.ToLower(s.Value)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate session %q", ErrInvalidCatalog, s.Value)
		}
		seen[key] = struct{}{}
		if !validClock(s.Start) || !validClock(s.End) {
			return nil, fmt.Errorf("%w: session %q needs HH:MM start and end, got %q-%q", ErrInvalidCatalog, s.Value, s.Start, s.End)
		}
		if s.Label == "" {
			s.Label = s.Value
		}
		out = append(out, s)
	}
	return &Catalog{sessions: out}, nil
}

// Sessions returns a copy of the sessions in catalog order.
func (c *Catalog) Sessions() []Session {
	out := make([]Session, len(c.sessions))
	copy(out, c.sessions)
	return out
}

// Lookup finds a session by value, ignoring case and surrounding space.
func (c *Catalog) Lookup(value string) (Session, bool) {
	for _, s := range c.sessions {
		if SameValue(s.Value, value) {
			return s, true
		}
	}
	return Session{}, false
}

// SameValue compares two session identifiers after trimming and case folding.
func SameValue(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// validClock accepts only zero-padded 24-hour times so that string order
// matches time order.
func validClock(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s[:2] <= "23" && s[3:] <= "59"
}
