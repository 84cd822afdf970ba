package models

import "time"

// RefreshRecord is the server-side row tracking one issued refresh token.
// Only the peppered hash of the token is stored; the raw token stays with
// the client. All tokens descended from one login share a FamilyID, and
// ReplacedByID links each rotated-out record to its successor.
type RefreshRecord struct {
	JTI          string
	FamilyID     string
	UserID       string
	TokenHash    string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time
	ReplacedByID *string
	UserAgent    string
	IP           string
}

// Live reports whether the record is still usable at the given instant:
// never revoked and not yet expired.
func (r *RefreshRecord) Live(now time.Time) bool {
	return r.RevokedAt == nil && r.ExpiresAt.After(now)
}
