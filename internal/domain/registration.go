package domain

import "time"

// PendingRegistration is one sign-up awaiting email-code confirmation.
// Email is the unique key; a new code for the same email replaces the record.
// Password is held verbatim unless the service is configured to hash it.
type PendingRegistration struct {
	ID       string
	Email    string
	Nickname string
	Password string
	Code     string
	IssuedAt time.Time
}

// Expired reports whether the code has aged past ttl at now.
// A code is still valid at exactly IssuedAt+ttl.
func (p *PendingRegistration) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.IssuedAt) > ttl
}
