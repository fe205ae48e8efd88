package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ============================================================
// Auth: Request / Response types
// ============================================================

// RegisterRequest is the body for POST /api/auth/register. Balance is the
// opening balance and is not derived from transactions.
type RegisterRequest struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	Balance  decimal.Decimal `json:"balance"`
}

// Validate trims the username and checks required fields.
func (r *RegisterRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" {
		return &ErrValidation{Field: "username", Message: "required"}
	}
	if r.Password == "" {
		return &ErrValidation{Field: "password", Message: "required"}
	}
	if r.Balance.IsNegative() {
		return &ErrValidation{Field: "balance", Message: "must not be negative"}
	}
	return nil
}

// RegisterResponse is the body for 201 from POST /api/auth/register.
type RegisterResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the body for 200 from POST /api/auth/login.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
}

// TokenClaims is what a verified access token carries.
type TokenClaims struct {
	UserID   string
	Username string
}
