// Package sessions delegates request authorization to the user-session
// collaborator: a signed session string is exchanged for an account id
// and its capabilities before any store is touched.
package sessions

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when the session is missing, invalid, or
// lacks a requested capability.
var ErrUnauthorized = errors.New("unauthorized")

// Capabilities is the set of grants a session can carry. CapabilityMask
// selects which ones a request needs checked.
type Capabilities struct {
	CanConsumeShows bool
}

type CapabilityMask struct {
	CheckCanConsumeShows bool
}

// VerifiedSession is the exchange result. The account id is known even
// when a capability check fails, so callers can log the refusal.
type VerifiedSession struct {
	AccountID    string
	Capabilities Capabilities
}

// Checker exchanges a signed session and verifies the masked
// capabilities. Implementations must not touch the ledger stores.
type Checker interface {
	ExchangeSession(ctx context.Context, signedSession string, mask CapabilityMask) (VerifiedSession, error)
}
