package domain

import "time"

// Principal is the authenticated caller resolved from a bearer token.
type Principal struct {
	Username  string // fully-qualified name
	ExpiresAt time.Time
}

// Token represents issued access token metadata.
type Token struct {
	Value     string
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}
