package idtoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

const (
	firebaseIssuerPrefix = "https://securetoken.google.com/"
	// Google publishes the Firebase ID token signing keys here as a JWKS.
	firebaseKeysURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
)

// FirebaseVerifier checks Firebase Authentication ID tokens: RS256 signature
// against Google's published keys, issuer and audience bound to the project.
type FirebaseVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// FirebaseOption configures a FirebaseVerifier.
type FirebaseOption func(*firebaseOptions)

type firebaseOptions struct {
	keySet oidc.KeySet
	now    func() time.Time
}

// WithKeySet replaces the remote JWKS, mainly for tests.
func WithKeySet(ks oidc.KeySet) FirebaseOption {
	return func(o *firebaseOptions) {
		o.keySet = ks
	}
}

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) FirebaseOption {
	return func(o *firebaseOptions) {
		o.now = now
	}
}

// NewFirebaseVerifier builds a verifier for projectID. ctx scopes the
// background key fetches and should live as long as the verifier.
func NewFirebaseVerifier(ctx context.Context, projectID string, opts ...FirebaseOption) (*FirebaseVerifier, error) {
	if projectID == "" {
		return nil, errors.New("firebase project id is required")
	}
	o := firebaseOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.keySet == nil {
		o.keySet = oidc.NewRemoteKeySet(ctx, firebaseKeysURL)
	}

	v := oidc.NewVerifier(firebaseIssuerPrefix+projectID, o.keySet, &oidc.Config{
		ClientID: projectID,
		Now:      o.now,
	})
	return &FirebaseVerifier{verifier: v}, nil
}

// Verify validates raw and returns its uid (the token subject) and email.
func (f *FirebaseVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	tok, err := f.verifier.Verify(ctx, raw)
	if err != nil {
		var expiredErr *oidc.TokenExpiredError
		if errors.As(err, &expiredErr) {
			return nil, expired(err)
		}
		return nil, invalid(err)
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := tok.Claims(&claims); err != nil {
		return nil, invalid(fmt.Errorf("decode claims: %w", err))
	}
	if tok.Subject == "" || claims.Email == "" {
		return nil, invalid(errors.New("token missing sub or email claim"))
	}

	return &Claims{UID: tok.Subject, Email: claims.Email}, nil
}
