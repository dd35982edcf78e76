// Package backend is the REST client for the marketplace API endpoints the client core consumes.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"gig-marketplace/client/internal/platform/errkind"
	"gig-marketplace/client/internal/platform/reqctx"
	sessiondomain "gig-marketplace/client/internal/session/domain"
	workdomain "gig-marketplace/client/internal/work/domain"
)

const (
	defaultTimeout = 15 * time.Second
	maxBody        = 1 << 20
	tracerName     = "gig-marketplace/client/backend"
)

var (
	ErrNoToken         = errors.New("backend: no bearer token")
	ErrIncompleteReply = errors.New("backend: response missing token or user")
)

// TokenSource supplies the current bearer token; "" means signed out.
type TokenSource interface {
	Token() string
}

// Client calls the marketplace REST API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
}

// NewClient returns a client for baseURL that reads bearer tokens from tokens.
func NewClient(baseURL string, tokens TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Tokens:     tokens,
	}
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: status=%d", e.Status)
	}
	return fmt.Sprintf("backend: status=%d: %s", e.Status, e.Message)
}

// UserFacing returns the server's message for display (e.g. "account disabled").
func (e *APIError) UserFacing() string { return e.Message }

// IdentityExchangeRequest is the body of POST /users/googlelogin.
type IdentityExchangeRequest struct {
	Email       string `json:"email"`
	ExternalID  string `json:"externalId"`
	DisplayName string `json:"displayName"`
}

// AuthResponse is the {token, user} pair returned by both login endpoints.
type AuthResponse struct {
	Token string                     `json:"token"`
	User  *sessiondomain.UserProfile `json:"user"`
}

// IdentityExchange trades the external identity for an application session.
// Any failure is BackendRejected.
func (c *Client) IdentityExchange(ctx context.Context, in IdentityExchangeRequest) (*AuthResponse, error) {
	return c.login(ctx, "backend.IdentityExchange", "/users/googlelogin", in)
}

// PasswordLogin signs in with email and password. Any failure is BackendRejected.
func (c *Client) PasswordLogin(ctx context.Context, email, password string) (*AuthResponse, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}
	return c.login(ctx, "backend.PasswordLogin", "/auth/login", body)
}

func (c *Client) login(ctx context.Context, op, path string, body any) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, path, false, body, &out); err != nil {
		return nil, errkind.E(errkind.BackendRejected, op, err)
	}
	if out.Token == "" || out.User == nil {
		return nil, errkind.E(errkind.BackendRejected, op, ErrIncompleteReply)
	}
	return &out, nil
}

// ActiveWork queries GET /works/isWorkOpen for the signed-in user. A missing token is
// Unauthenticated; transport and server failures are TransientQueryFailure.
func (c *Client) ActiveWork(ctx context.Context) (*workdomain.QueryResult, error) {
	const op = "backend.ActiveWork"
	var out workdomain.QueryResult
	if err := c.do(ctx, http.MethodGet, "/works/isWorkOpen", true, nil, &out); err != nil {
		if errors.Is(err, ErrNoToken) {
			return nil, errkind.E(errkind.Unauthenticated, op, err)
		}
		return nil, errkind.E(errkind.TransientQueryFailure, op, err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, body, out any) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, method+" "+path)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var token string
	if auth {
		if c.Tokens != nil {
			token = c.Tokens.Token()
		}
		if token == "" {
			return ErrNoToken
		}
	}

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	reqctx.SetHeaders(ctx, req)

	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("backend: decode %s: %w", path, err)
	}
	return nil
}

// errorMessage extracts {message} or {error} from an error body, falling back to the raw text.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
