package domain

// ExternalIdentity is the minimal profile derived from the identity provider's session.
type ExternalIdentity struct {
	ExternalID  string
	Email       string
	DisplayName string
	Provider    IdentityProvider
}

// IdentityProvider names the upstream that authenticated the user.
type IdentityProvider string

const (
	IdentityProviderGoogle   IdentityProvider = "google"
	IdentityProviderPassword IdentityProvider = "password"
)

// TokenPair is the provider access/refresh pair delivered in an OAuth callback.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int    // seconds; 0 when the callback did not say
	TokenType    string // usually "bearer"
}
