package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/possync/pkg/config"
)

func testRemoteConfig() config.RemoteConfig {
	return config.RemoteConfig{
		JWTSecret: "secret",
		JWTIssuer: "possync",
		TokenTTL:  time.Minute,
	}
}

func TestMintAndParseTerminalToken(t *testing.T) {
	cfg := testRemoteConfig()
	now := time.Now().UTC()

	token, err := MintTerminalToken(cfg, now, TerminalIdentity{TerminalID: "till-3", StoreID: "store-9"})
	if err != nil {
		t.Fatalf("mint terminal token: %v", err)
	}

	claims, err := ParseTerminalToken(cfg, token)
	if err != nil {
		t.Fatalf("parse terminal token: %v", err)
	}
	if claims.TerminalID != "till-3" || claims.StoreID != "store-9" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.Issuer != cfg.JWTIssuer {
		t.Fatalf("expected issuer %s, got %s", cfg.JWTIssuer, claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be set")
	}
}

func TestParseTerminalToken_RejectsExpired(t *testing.T) {
	cfg := testRemoteConfig()
	token, err := MintTerminalToken(cfg, time.Now().Add(-time.Hour), TerminalIdentity{TerminalID: "till-1"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseTerminalToken(cfg, token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestParseTerminalToken_RejectsWrongSecretAndIssuer(t *testing.T) {
	cfg := testRemoteConfig()
	token, err := MintTerminalToken(cfg, time.Now(), TerminalIdentity{TerminalID: "till-1"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	wrongSecret := cfg
	wrongSecret.JWTSecret = "other"
	if _, err := ParseTerminalToken(wrongSecret, token); err == nil {
		t.Fatal("expected signature mismatch")
	}

	wrongIssuer := cfg
	wrongIssuer.JWTIssuer = "someone-else"
	if _, err := ParseTerminalToken(wrongIssuer, token); err == nil || !strings.Contains(err.Error(), "issuer") {
		t.Fatalf("expected issuer error, got %v", err)
	}
}

func TestMintTerminalToken_RequiresConfig(t *testing.T) {
	now := time.Now()
	if _, err := MintTerminalToken(config.RemoteConfig{JWTIssuer: "x"}, now, TerminalIdentity{TerminalID: "t"}); err == nil {
		t.Fatal("expected missing secret error")
	}
	if _, err := MintTerminalToken(testRemoteConfig(), now, TerminalIdentity{}); err == nil {
		t.Fatal("expected missing terminal id error")
	}
}
