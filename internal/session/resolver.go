package session

import "time"

const (
	clockLayout = "15:04"
	dateLayout  = "2006-01-02"
)

// Within reports whether current falls inside the window [start, end].
// Both ends are inclusive. When start > end the window wraps midnight.
// Comparison is on the HH:MM strings, so an end of "00:00" means the literal
// minute 00:00 and not the end of the day.
func Within(current, start, end string) bool {
	if start <= end {
		return current >= start && current <= end
	}
	return current >= start || current <= end
}

// Resolve returns the first session in catalog order whose window contains
// now, projected into loc. A non-empty pinnedDate ("2006-01-02") restricts
// resolution to that local calendar day.
func Resolve(now time.Time, c *Catalog, loc *time.Location, pinnedDate string) (Session, bool) {
	if c == nil {
		return Session{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	if pinnedDate != "" && local.Format(dateLayout) != pinnedDate {
		return Session{}, false
	}
	current := local.Format(clockLayout)
	for _, s := range c.sessions {
		if Within(current, s.Start, s.End) {
			return s, true
		}
	}
	return Session{}, false
}

// Resolver binds a catalog to a timezone and an optional event date.
type Resolver struct {
	catalog    *Catalog
	loc        *time.Location
	pinnedDate string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPinnedDate confines active sessions to the local calendar day of date.
// A zero time leaves resolution unpinned.
func WithPinnedDate(date time.Time) Option {
	return func(r *Resolver) {
		if date.IsZero() {
			r.pinnedDate = ""
			return
		}
		r.pinnedDate = date.Format(dateLayout)
	}
}

// NewResolver creates a resolver for catalog in loc.
func NewResolver(catalog *Catalog, loc *time.Location, opts ...Option) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	r := &Resolver{catalog: catalog, loc: loc}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Active returns the session active at now, if any.
func (r *Resolver) Active(now time.Time) (Session, bool) {
	return Resolve(now, r.catalog, r.loc, r.pinnedDate)
}

// Catalog returns the bound catalog.
func (r *Resolver) Catalog() *Catalog { return r.catalog }

// PinnedDate returns the configured event date, or "" when unpinned.
func (r *Resolver) PinnedDate() string { return r.pinnedDate }

// Clock returns the local date and HH:MM time the resolver sees at now.
func (r *Resolver) Clock(now time.Time) (date, clock string) {
	local := now.In(r.loc)
	return local.Format(dateLayout), local.Format(clockLayout)
}
