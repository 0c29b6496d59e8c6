package dto

import "time"

// LoginRequest payload for login. Username may be bare or fully qualified.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expires_at"`
}
