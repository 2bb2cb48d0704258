package domain

import "time"

// AuthResult is the outcome of a privilege check against the authority
// service.
type AuthResult string

const (
	Authorized    AuthResult = "authorized"
	NotAuthorized AuthResult = "not_authorized"
	Challenge     AuthResult = "challenge"
)

// AuthorizationRecord is a cached authority decision for a single action id.
// A read after CachedAt+TTL is treated as a miss.
type AuthorizationRecord struct {
	ActionID string        `json:"action_id"`
	Result   AuthResult    `json:"result"`
	CachedAt time.Time     `json:"cached_at"`
	TTL      time.Duration `json:"ttl"`
}

// Expired reports whether the record is past its TTL at the given instant.
func (r AuthorizationRecord) Expired(now time.Time) bool {
	return now.After(r.CachedAt.Add(r.TTL))
}
