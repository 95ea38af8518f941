package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/possync/pkg/auth"
	"github.com/angelmondragon/possync/pkg/config"
	pkgerrors "github.com/angelmondragon/possync/pkg/errors"
	"github.com/angelmondragon/possync/pkg/types"
)

type capturedRequest struct {
	method      string
	path        string
	query       string
	auth        string
	idempotency string
	body        map[string]any
}

func newTestServer(t *testing.T, status int, payload any) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var seen []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := capturedRequest{
			method:      r.Method,
			path:        r.URL.Path,
			query:       r.URL.RawQuery,
			auth:        r.Header.Get("Authorization"),
			idempotency: r.Header.Get("Idempotency-Key"),
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req.body)
		}
		seen = append(seen, req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient(config.RemoteConfig{
		BaseURL:   baseURL,
		Timeout:   time.Second,
		JWTSecret: "secret",
		JWTIssuer: "possync",
	}, auth.TerminalIdentity{TerminalID: "till-1", StoreID: "store-1"}, nil)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	return client
}

func TestHTTPClient_InsertSendsTokenAndIdempotencyKey(t *testing.T) {
	srv, seen := newTestServer(t, http.StatusCreated, types.SuccessEnvelope{Data: map[string]any{"id": "s1", "total": "3.00"}})
	client := newTestClient(t, srv.URL)

	ctx := WithIdempotencyKey(context.Background(), "record_sale-1-abc")
	rec, err := client.Insert(ctx, TableSales, Record{"id": "s1", "total": "3.00"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if rec.String("id") != "s1" {
		t.Fatalf("unexpected record %v", rec)
	}

	got := (*seen)[0]
	if got.method != http.MethodPost || got.path != "/api/v1/tables/sales" {
		t.Fatalf("unexpected request %s %s", got.method, got.path)
	}
	if got.idempotency != "record_sale-1-abc" {
		t.Fatalf("expected idempotency header, got %q", got.idempotency)
	}
	token := strings.TrimPrefix(got.auth, "Bearer ")
	claims, err := auth.ParseTerminalToken(config.RemoteConfig{JWTSecret: "secret", JWTIssuer: "possync"}, token)
	if err != nil {
		t.Fatalf("bearer token invalid: %v", err)
	}
	if claims.TerminalID != "till-1" {
		t.Fatalf("unexpected terminal id %q", claims.TerminalID)
	}
}

func TestHTTPClient_SelectEncodesFilter(t *testing.T) {
	srv, seen := newTestServer(t, http.StatusOK, types.SuccessEnvelope{Data: []map[string]any{{"id": "p1", "stock": 7}}})
	client := newTestClient(t, srv.URL)

	rows, err := client.Select(context.Background(), TableProducts, Filter{"barcode": "7501"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if stock, ok := rows[0].Int("stock"); !ok || stock != 7 {
		t.Fatalf("unexpected stock %v", rows[0]["stock"])
	}
	if (*seen)[0].query != "barcode=7501" {
		t.Fatalf("unexpected query %q", (*seen)[0].query)
	}
	if (*seen)[0].idempotency != "" {
		t.Fatalf("select must not carry an idempotency key")
	}
}

func TestHTTPClient_DecodesErrorEnvelope(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusConflict, types.ErrorEnvelope{Error: types.APIError{Code: string(pkgerrors.CodeConflict), Message: "duplicate sale"}})
	client := newTestClient(t, srv.URL)

	err := client.Update(context.Background(), TableProducts, "p1", Record{"stock": 1})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestHTTPClient_TransportFailureIsDependencyError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, nil)
	client := newTestClient(t, srv.URL)
	srv.Close()

	err := client.Delete(context.Background(), TableProducts, "p1")
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected DEPENDENCY_ERROR, got %v", err)
	}
}

func TestHTTPClient_PlainStatusFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	_, err := client.Select(context.Background(), TableProducts, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected DEPENDENCY_ERROR, got %v", err)
	}
}
