// Package provider talks to the GoTrue-compatible identity provider that hosts the OAuth flow.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"gig-marketplace/client/internal/identity/domain"
	"gig-marketplace/client/internal/platform/errkind"
	"gig-marketplace/client/internal/platform/reqctx"
)

const (
	defaultTimeout = 15 * time.Second
	// expirySkew treats tokens about to expire as expired so the /user call does not race the clock.
	expirySkew = 30 * time.Second
	tracerName = "gig-marketplace/client/identity/provider"
)

var (
	ErrNotConfigured  = errors.New("provider: base URL not configured")
	ErrTokenExpired   = errors.New("provider: access token expired and no refresh token")
	ErrMissingSubject = errors.New("provider: user has no id")
	ErrMissingEmail   = errors.New("provider: user has no email")
)

// Client calls the provider's auth API. APIKey is the public (anon) key sent as the apikey header.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	now func() time.Time
}

// NewClient returns a client for baseURL with the default timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// AuthorizeURL returns the provider-hosted login URL for the external provider (e.g. "google")
// that redirects to redirectTo when done.
func (c *Client) AuthorizeURL(provider, redirectTo string) (string, error) {
	if c.BaseURL == "" {
		return "", ErrNotConfigured
	}
	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return c.BaseURL + "/auth/v1/authorize?" + q.Encode(), nil
}

// Exchange establishes the provider session for pair and returns the minimal external identity.
// An expired (or missing) access token is refreshed first when a refresh token is present.
// Every failure is ProviderRejected.
func (c *Client) Exchange(ctx context.Context, pair domain.TokenPair) (*domain.ExternalIdentity, error) {
	const op = "provider.Exchange"
	ctx, span := otel.Tracer(tracerName).Start(ctx, "provider.exchange")
	defer span.End()

	ident, err := c.exchange(ctx, pair)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider rejected")
		return nil, errkind.E(errkind.ProviderRejected, op, err)
	}
	span.SetAttributes(attribute.String("identity.provider", string(ident.Provider)))
	return ident, nil
}

func (c *Client) exchange(ctx context.Context, pair domain.TokenPair) (*domain.ExternalIdentity, error) {
	if c.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	access := pair.AccessToken
	if access == "" || c.expired(access) {
		if pair.RefreshToken == "" {
			return nil, ErrTokenExpired
		}
		refreshed, err := c.refresh(ctx, pair.RefreshToken)
		if err != nil {
			return nil, err
		}
		access = refreshed.AccessToken
	}
	u, err := c.user(ctx, access)
	if err != nil {
		return nil, err
	}
	return u.identity()
}

// expired reports whether token is a JWT whose exp claim has passed. Opaque tokens are left
// for the provider to judge.
func (c *Client) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(c.clock().Add(expirySkew))
}

func (c *Client) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	raw, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", raw, &out); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if out.AccessToken == "" {
		return nil, errors.New("provider: refresh returned no access token")
	}
	return &out, nil
}

type providerUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  struct {
		Provider string `json:"provider"`
	} `json:"app_metadata"`
}

func (c *Client) user(ctx context.Context, accessToken string) (*providerUser, error) {
	var u providerUser
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &u); err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	return &u, nil
}

func (u *providerUser) identity() (*domain.ExternalIdentity, error) {
	if u.ID == "" {
		return nil, ErrMissingSubject
	}
	email := strings.TrimSpace(u.Email)
	if email == "" {
		return nil, ErrMissingEmail
	}
	provider := domain.IdentityProviderGoogle
	if u.AppMetadata.Provider != "" {
		provider = domain.IdentityProvider(u.AppMetadata.Provider)
	}
	return &domain.ExternalIdentity{
		ExternalID:  u.ID,
		Email:       email,
		DisplayName: displayName(u.UserMetadata, email),
		Provider:    provider,
	}, nil
}

// displayName prefers full_name, then name, then the local part of the email.
func displayName(meta map[string]any, email string) string {
	for _, key := range []string{"full_name", "name"} {
		if s, ok := meta[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider: status=%d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("apikey", c.APIKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
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
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// errorMessage pulls the human-readable text out of a GoTrue error body.
func errorMessage(raw []byte) string {
	var body struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		for _, s := range []string{body.Msg, body.Message, body.ErrorDescription, body.Error} {
			if s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(raw))
}
