package validators

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/possync/pkg/errors"
)

type sampleBody struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" validate:"min=1"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"count":0}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %#v", pkgerrors.As(err).Details())
	}
	if details["name"] != "is required" || details["count"] != "must be at least 1" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","count":1,"extra":true}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONObjectKeepsNumbers(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"stock":20,"price":"1.50"}`))
	obj, err := DecodeJSONObject(req)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n, ok := obj["stock"].(json.Number); !ok || n.String() != "20" {
		t.Fatalf("expected json.Number 20, got %#v", obj["stock"])
	}

	empty := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	if _, err := DecodeJSONObject(empty); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty object, got %v", err)
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=20&bad=x&big=9000", nil)
	if v, err := ParseQueryInt(req, "limit", 50, 1, 500); err != nil || v != 20 {
		t.Fatalf("expected 20, got %d %v", v, err)
	}
	if v, err := ParseQueryInt(req, "missing", 50, 1, 500); err != nil || v != 50 {
		t.Fatalf("expected default, got %d %v", v, err)
	}
	if _, err := ParseQueryInt(req, "bad", 50, 1, 500); err == nil {
		t.Fatal("expected numeric error")
	}
	if _, err := ParseQueryInt(req, "big", 50, 1, 500); err == nil {
		t.Fatal("expected range error")
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  4006381333931  ", 8); got != "40063813" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
	if got := SanitizeString("café au lait", 4); got != "café" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}

func TestSanitizeBarcode(t *testing.T) {
	if got := SanitizeBarcode("4006381\t333931\r\n", 128); got != "4006381333931" {
		t.Fatalf("unexpected barcode %q", got)
	}
	if got := SanitizeBarcode(" \n ", 128); got != "" {
		t.Fatalf("expected empty barcode, got %q", got)
	}
}

func TestParseQueryFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?barcode=111&active=true", nil)
	filter, err := ParseQueryFilter(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter["barcode"] != "111" || filter["active"] != "true" || len(filter) != 2 {
		t.Fatalf("unexpected filter %v", filter)
	}

	for _, target := range []string{"/?id=1&id=2", "/?Name=x", "/?stock-level=1"} {
		if _, err := ParseQueryFilter(httptest.NewRequest(http.MethodGet, target, nil)); err == nil {
			t.Fatalf("expected %s to be rejected", target)
		}
	}
}
