// Package idtoken verifies identity-provider ID tokens and returns the
// subject and email they assert. It makes no account decisions.
package idtoken

import (
	"errors"

	dErrors "rollcall/pkg/domain-errors"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims are the identity facts carried by a verified token.
type Claims struct {
	UID   string
	Email string
}

func expired(err error) error {
	return dErrors.Wrap(errors.Join(ErrTokenExpired, err), dErrors.CodeUnauthorized, "Token expired. Please sign in again.")
}

func invalid(err error) error {
	return dErrors.Wrap(errors.Join(ErrTokenInvalid, err), dErrors.CodeUnauthorized, "Invalid token. Please sign in again.")
}
