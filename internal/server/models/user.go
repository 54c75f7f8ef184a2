package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is a durable identity record. The password is stored only as a
// bcrypt hash; comparisons go through ValidatePassword, never through
// direct equality of stored and supplied values.
type User struct {
	ID               int64
	Email            string
	DisplayName      string
	PasswordHash     string
	Timezone         string
	AuthToken        string
	AuthTokenCreated time.Time
	CreatedAt        time.Time
	Groups           []*Group
}

// SetPassword replaces the stored hash with a bcrypt hash of plaintext.
func (u *User) SetPassword(plaintext string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// ValidatePassword reports whether plaintext matches the stored hash.
// A user without a stored hash never validates.
func (u *User) ValidatePassword(plaintext string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plaintext)) == nil
}

// AuthTokenValid reports whether the issued auth token is still inside
// its validity window at the given instant.
func (u *User) AuthTokenValid(now time.Time, validity time.Duration) bool {
	if u.AuthToken == "" {
		return false
	}
	return now.Sub(u.AuthTokenCreated) < validity
}
