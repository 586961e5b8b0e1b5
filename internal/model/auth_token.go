package model

import "time"

// AuthToken is a long-lived remember-me credential. Only the SHA-256 of the token is stored.
type AuthToken struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    string    `gorm:"type:varchar(36);index;not null"`
	TokenHash string    `gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	User User `gorm:"constraint:OnDelete:CASCADE"`
}

// Expired reports whether the token is past its expiry at now.
func (t *AuthToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
