// Package airtable is the HTTP client for the remote store's REST API: the
// identity probe, schema metadata (bases, tables, fields) and record
// read/write. Callers pass the access token per call; token lifecycle belongs
// to the auth broker, not this client.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"formbridge/pkg/platform/sentinel"
)

// Identity is the remote store's answer to the whoami probe.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Base is a workspace-level container of tables.
type Base struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PermissionLevel string `json:"permissionLevel"`
}

// Choice is one selectable option of a select-typed field.
type Choice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FieldOptions carries the type-specific attributes of a field. Only
// select-typed fields populate Choices.
type FieldOptions struct {
	Choices []Choice `json:"choices"`
}

// Field is a column of a remote table.
type Field struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Type    string        `json:"type"`
	Options *FieldOptions `json:"options,omitempty"`
}

// Table is a remote table with its field schema.
type Table struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Record is a stored row of a remote table.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime time.Time      `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

// Client talks to the remote store's REST API.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New constructs a client rooted at baseURL (e.g. https://api.airtable.com).
func New(baseURL string, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WhoAmI resolves the identity behind an access token.
func (c *Client) WhoAmI(ctx context.Context, token string) (*Identity, error) {
	var identity Identity
	if err := c.getJSON(ctx, token, "/v0/meta/whoami", nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// ListBases returns the bases the token can read.
func (c *Client) ListBases(ctx context.Context, token string) ([]Base, error) {
	var payload struct {
		Bases []Base `json:"bases"`
	}
	if err := c.getJSON(ctx, token, "/v0/meta/bases", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Bases, nil
}

// ListTables returns the table schemas of a base.
func (c *Client) ListTables(ctx context.Context, token, baseID string) ([]Table, error) {
	var payload struct {
		Tables []Table `json:"tables"`
	}
	path := fmt.Sprintf("/v0/meta/bases/%s/tables", url.PathEscape(baseID))
	if err := c.getJSON(ctx, token, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Tables, nil
}

// CreateRecord writes one row of fields into a table. Writes are never
// retried here; a transient failure surfaces to the caller.
func (c *Client) CreateRecord(ctx context.Context, token, baseID, tableID string, fields map[string]any) error {
	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	path := fmt.Sprintf("/v0/%s/%s", url.PathEscape(baseID), url.PathEscape(tableID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return c.statusError(resp)
}

// ListRecords reads all rows of a table, following offset pagination.
func (c *Client) ListRecords(ctx context.Context, token, baseID, tableID string) ([]Record, error) {
	path := fmt.Sprintf("/v0/%s/%s", url.PathEscape(baseID), url.PathEscape(tableID))

	var records []Record
	offset := ""
	for {
		query := url.Values{}
		if offset != "" {
			query.Set("offset", offset)
		}
		var page struct {
			Records []Record `json:"records"`
			Offset  string   `json:"offset"`
		}
		if err := c.getJSON(ctx, token, path, query, &page); err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

// getJSON performs an authenticated GET and decodes the JSON response.
// Transient failures (network errors, 429, 5xx) are retried once; reads are
// idempotent so the retry is safe.
func (c *Client) getJSON(ctx context.Context, token, path string, query url.Values, out any) error {
	err := c.getJSONOnce(ctx, token, path, query, out)
	if err != nil && errors.Is(err, sentinel.ErrUnavailable) && ctx.Err() == nil {
		c.log.Warn("retrying transient remote store failure", "path", path, "error", err.Error())
		err = c.getJSONOnce(ctx, token, path, query, out)
	}
	return err
}

func (c *Client) getJSONOnce(ctx context.Context, token, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) transportError(err error) error {
	return fmt.Errorf("remote store unreachable: %w: %w", err, sentinel.ErrUnavailable)
}

// statusError maps an upstream status onto a sentinel. The response body is
// logged for diagnosis but never carried in the returned error, so it cannot
// leak into client-facing messages.
func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	c.log.Warn("remote store error response",
		"status", resp.StatusCode,
		"path", resp.Request.URL.Path,
		"body", string(body),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("remote store rejected credentials (status %d): %w", resp.StatusCode, sentinel.ErrTokenRejected)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("remote store unavailable (status %d): %w", resp.StatusCode, sentinel.ErrUnavailable)
	default:
		return fmt.Errorf("remote store returned status %d", resp.StatusCode)
	}
}
