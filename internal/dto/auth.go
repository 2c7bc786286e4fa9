package dto

import "time"

// CreateAPIKeyRequest represents the API key creation payload
type CreateAPIKeyRequest struct {
	Name      string     `json:"name" validate:"required,min=1,max=100"`
	Scopes    []string   `json:"scopes,omitempty" validate:"omitempty,dive,min=1"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// UpdateAPIKeyRequest represents the API key update payload
type UpdateAPIKeyRequest struct {
	Name      string     `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Scopes    []string   `json:"scopes,omitempty" validate:"omitempty,dive,min=1"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// TokenExchangeRequest exchanges an API key for a short-lived session token
type TokenExchangeRequest struct {
	APIKey string `json:"apiKey" validate:"required"`
}

// TokenExchangeResponse carries the issued session token
type TokenExchangeResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
