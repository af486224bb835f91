package domain

import "time"

// Lease is a named lock held by Owner until ExpiresAt.
type Lease struct {
	Name      string
	Owner     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Live reports whether the lease still excludes other holders at now.
func (l Lease) Live(now time.Time) bool {
	return l.ExpiresAt.After(now)
}
