// Package identity resolves an identity-provider uid to the email address
// invoices are sent to.
package identity

import (
	"context"
	"errors"
)

// ErrNoEmail is returned when the uid is unknown or the account has no email.
var ErrNoEmail = errors.New("identity: no email address for uid")

// Resolver looks up the email address for a uid.
type Resolver interface {
	EmailForUID(ctx context.Context, uid string) (string, error)
}

// None is a Resolver for deployments without an identity provider. Every
// lookup fails with ErrNoEmail.
type None struct{}

// EmailForUID always returns ErrNoEmail.
func (None) EmailForUID(ctx context.Context, uid string) (string, error) {
	return "", ErrNoEmail
}

// Static resolves uids from a fixed map. Used by tests and local runs.
type Static map[string]string

// EmailForUID returns the mapped email or ErrNoEmail.
func (s Static) EmailForUID(ctx context.Context, uid string) (string, error) {
	email, ok := s[uid]
	if !ok || email == "" {
		return "", ErrNoEmail
	}
	return email, nil
}
