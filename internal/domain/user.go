package domain

import (
	"strings"
	"time"
)

// UserStatus is derived from the account lock flag for API responses.
type UserStatus string

const (
	UserStatusActive UserStatus = "ACTIVE"
	UserStatusLocked UserStatus = "LOCKED"
)

// User is an identity record. Name is unique within Domain; the pair is the
// fully-qualified name used as the store key.
type User struct {
	ID            string
	Name          string
	Domain        string
	Password      string // plaintext on input only; never persisted
	PasswordHash  string
	Roles         []string
	AccountLocked bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FullyQualifiedName returns name@domain.
func (u User) FullyQualifiedName() string {
	return QualifyName(u.Name, u.Domain)
}

// Status reports the account status.
func (u User) Status() UserStatus {
	if u.AccountLocked {
		return UserStatusLocked
	}
	return UserStatusActive
}

// QualifyName joins a name and domain into a fully-qualified name.
func QualifyName(name, domain string) string {
	return name + "@" + domain
}

// SplitName splits a possibly qualified username. The domain is empty when the
// username carries none.
func SplitName(username string) (name, domain string) {
	idx := strings.LastIndex(username, "@")
	if idx < 0 {
		return username, ""
	}
	return username[:idx], username[idx+1:]
}
