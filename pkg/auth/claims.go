package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// TerminalIdentity names the terminal a token is minted for.
type TerminalIdentity struct {
	TerminalID string
	StoreID    string
}

// TerminalClaims is the JWT a terminal presents to the remote API.
type TerminalClaims struct {
	TerminalID string `json:"terminal_id"`
	StoreID    string `json:"store_id,omitempty"`
	jwt.RegisteredClaims
}
