package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/possync/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

const defaultTokenTTL = 5 * time.Minute

// MintTerminalToken issues a short-lived signed JWT for the terminal.
func MintTerminalToken(cfg config.RemoteConfig, now time.Time, id TerminalIdentity) (string, error) {
	if cfg.JWTSecret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.JWTIssuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if strings.TrimSpace(id.TerminalID) == "" {
		return "", fmt.Errorf("terminal id is required")
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	claims := TerminalClaims{
		TerminalID: id.TerminalID,
		StoreID:    id.StoreID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.JWTIssuer,
			Subject:   id.TerminalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign terminal token: %w", err)
	}
	return signed, nil
}

// ParseTerminalToken validates the signature, issuer and expiry of tokenString.
func ParseTerminalToken(cfg config.RemoteConfig, tokenString string) (*TerminalClaims, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims := &TerminalClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.JWTIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.TerminalID == "" {
		return nil, fmt.Errorf("token has no terminal id")
	}

	return claims, nil
}
