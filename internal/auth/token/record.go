package token

import "time"

// Record is the persisted form of a user token.
type Record struct {
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Expired reports whether the stored record's expiry has passed. Unlike
// Token.IsExpired, store-level cleanup does honor the persisted timestamp:
// purging stale records bounds on-disk growth without pre-empting the
// upstream provider on live requests.
func (r Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Token converts the record back into the value object.
func (r Record) Token() (Token, error) {
	return New(r.Value, r.ExpiresAt)
}
