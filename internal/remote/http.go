package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/possync/pkg/auth"
	"github.com/angelmondragon/possync/pkg/config"
	pkgerrors "github.com/angelmondragon/possync/pkg/errors"
	"github.com/angelmondragon/possync/pkg/types"
)

const maxErrorBody = 64 << 10

// HTTPClient talks to the remote API over REST/JSON, authenticating every call
// with a freshly minted terminal JWT.
type HTTPClient struct {
	baseURL  string
	cfg      config.RemoteConfig
	identity auth.TerminalIdentity
	http     *http.Client
	now      func() time.Time
}

// NewHTTPClient builds a client for cfg.BaseURL. hc may be nil.
func NewHTTPClient(cfg config.RemoteConfig, identity auth.TerminalIdentity, hc *http.Client) (*HTTPClient, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("remote base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parsing remote base url: %w", err)
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPClient{
		baseURL:  base,
		cfg:      cfg,
		identity: identity,
		http:     hc,
		now:      time.Now,
	}, nil
}

func (c *HTTPClient) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	var out Record
	if err := c.do(ctx, http.MethodPost, c.tableURL(table, ""), rec, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) Update(ctx context.Context, table, id string, patch Record) error {
	if err := checkTable(table); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, c.tableURL(table, id), patch, nil)
}

func (c *HTTPClient) Delete(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, c.tableURL(table, id), nil, nil)
}

func (c *HTTPClient) Select(ctx context.Context, table string, filter Filter) ([]Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	u := c.tableURL(table, "")
	if len(filter) > 0 {
		q := url.Values{}
		for k, v := range filter {
			q.Set(k, fmt.Sprint(v))
		}
		u += "?" + q.Encode()
	}
	var out []Record
	if err := c.do(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) tableURL(table, id string) string {
	u := c.baseURL + "/api/v1/tables/" + url.PathEscape(table)
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

func (c *HTTPClient) do(ctx context.Context, method, target string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encoding request body")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := IdempotencyKeyFrom(ctx); key != "" && method == http.MethodPost {
		req.Header.Set("Idempotency-Key", key)
	}
	if c.cfg.JWTSecret != "" {
		token, err := auth.MintTerminalToken(c.cfg, c.now(), c.identity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting terminal token")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s", method, target))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	envelope := types.SuccessEnvelope{Data: dest}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding response body")
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		typed := pkgerrors.New(pkgerrors.Code(envelope.Error.Code), envelope.Error.Message)
		if envelope.Error.Details != nil {
			typed = typed.WithDetails(envelope.Error.Details)
		}
		return typed
	}
	code := pkgerrors.CodeDependency
	switch {
	case resp.StatusCode == http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	case resp.StatusCode == http.StatusConflict:
		code = pkgerrors.CodeConflict
	case resp.StatusCode == http.StatusUnauthorized:
		code = pkgerrors.CodeUnauthorized
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		code = pkgerrors.CodeValidation
	}
	return pkgerrors.New(code, fmt.Sprintf("remote returned %d", resp.StatusCode))
}
