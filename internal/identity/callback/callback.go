// Package callback extracts the provider token pair from an OAuth redirect URL.
package callback

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"gig-marketplace/client/internal/identity/domain"
	"gig-marketplace/client/internal/platform/errkind"
)

const op = "callback.Parse"

// ProviderError is the error a provider reported in the redirect (error / error_description).
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return "provider error: " + e.Code
	}
	return "provider error: " + e.Code + ": " + e.Description
}

// UserFacing returns the provider's description for display.
func (e *ProviderError) UserFacing() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Code
}

// Parse reads access_token/refresh_token from rawURL's fragment or query string. When both
// carry tokens the fragment wins. A redirect carrying a provider error is ProviderRejected;
// one with neither token is MalformedCallback.
func Parse(rawURL string) (domain.TokenPair, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return domain.TokenPair{}, errkind.E(errkind.MalformedCallback, op, errors.New("empty callback url"))
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.TokenPair{}, errkind.E(errkind.MalformedCallback, op, err)
	}

	fragment, err := url.ParseQuery(u.Fragment)
	if err != nil {
		fragment = url.Values{}
	}
	query := u.Query()

	for _, vals := range []url.Values{fragment, query} {
		if code := vals.Get("error"); code != "" {
			perr := &ProviderError{Code: code, Description: vals.Get("error_description")}
			return domain.TokenPair{}, errkind.E(errkind.ProviderRejected, op, perr)
		}
	}

	for _, vals := range []url.Values{fragment, query} {
		if pair, ok := pairFrom(vals); ok {
			return pair, nil
		}
	}
	return domain.TokenPair{}, errkind.E(errkind.MalformedCallback, op, errors.New("no access_token or refresh_token in callback"))
}

func pairFrom(vals url.Values) (domain.TokenPair, bool) {
	pair := domain.TokenPair{
		AccessToken:  strings.TrimSpace(vals.Get("access_token")),
		RefreshToken: strings.TrimSpace(vals.Get("refresh_token")),
		TokenType:    vals.Get("token_type"),
	}
	if pair.AccessToken == "" && pair.RefreshToken == "" {
		return domain.TokenPair{}, false
	}
	if n, err := strconv.Atoi(vals.Get("expires_in")); err == nil && n > 0 {
		pair.ExpiresIn = n
	}
	return pair, true
}
