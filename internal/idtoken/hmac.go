package idtoken

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type hmacClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// HMACVerifier verifies HS256 tokens signed with a shared secret. It stands
// in for the identity provider in development and tests.
type HMACVerifier struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewHMACVerifier(signingKey, issuer, audience string) *HMACVerifier {
	return &HMACVerifier{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// Issue mints a token for uid/email valid for expiresIn (negative values
// produce an already expired token).
func (v *HMACVerifier) Issue(uid, email string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := hmacClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    v.issuer,
			ID:        uuid.NewString(),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
}

func (v *HMACVerifier) Verify(_ context.Context, raw string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.ParseWithClaims(raw, &hmacClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, expired(err)
		}
		return nil, invalid(err)
	}

	claims, ok := parsed.Claims.(*hmacClaims)
	if !ok || !parsed.Valid {
		return nil, invalid(errors.New("unexpected claims"))
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, invalid(errors.New("token missing sub or email claim"))
	}

	return &Claims{UID: claims.Subject, Email: claims.Email}, nil
}
