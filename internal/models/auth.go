package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenStatus is the refresh token lifecycle state. Transitions are
// one-directional: active -> rotated on a successful refresh, active ->
// revoked on logout. Expiry is implicit by time.
type TokenStatus string

const (
	TokenStatusActive  TokenStatus = "active"
	TokenStatusRotated TokenStatus = "rotated"
	TokenStatusRevoked TokenStatus = "revoked"
)

type RefreshToken struct {
	ID         uuid.UUID     `db:"id"          json:"id"`
	UserID     uuid.UUID     `db:"user_id"     json:"userId"`
	JTI        uuid.UUID     `db:"jti"         json:"jti"`
	TokenHash  string        `db:"token_hash"  json:"-"`
	Status     TokenStatus   `db:"status"      json:"status"`
	ReplacedBy uuid.NullUUID `db:"replaced_by" json:"replacedBy,omitempty"`
	ExpiresAt  time.Time     `db:"expires_at"  json:"expiresAt"`
	IP         string        `db:"ip"          json:"ip"`
	UserAgent  string        `db:"user_agent"  json:"userAgent"`
	CreatedAt  time.Time     `db:"created_at"  json:"createdAt"`
	UpdatedAt  time.Time     `db:"updated_at"  json:"updatedAt"`
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t *RefreshToken) Active(now time.Time) bool {
	return t.Status == TokenStatusActive && !t.Expired(now)
}
