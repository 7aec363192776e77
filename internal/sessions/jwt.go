package sessions

import (
	"context"
	"fmt"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Claims is the session token payload: the account id in the registered
// subject plus capability grants.
type Claims struct {
	jwt.RegisteredClaims
	CanConsumeShows bool `json:"can_consume_shows"`
}

// JWTChecker verifies HS256-signed session tokens locally. It stands in
// for the remote user-session service in deployments that share the
// signing secret.
type JWTChecker struct {
	Secret []byte
}

func (c JWTChecker) ExchangeSession(_ context.Context, signedSession string, mask CapabilityMask) (VerifiedSession, error) {
	if signedSession == "" {
		return VerifiedSession{}, fmt.Errorf("%w: missing session", ErrUnauthorized)
	}
	parsed, err := jwt.ParseWithClaims(signedSession, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", token.Method.Alg())
		}
		return c.Secret, nil
	})
	if err != nil {
		return VerifiedSession{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return VerifiedSession{}, fmt.Errorf("%w: invalid session", ErrUnauthorized)
	}

	out := VerifiedSession{
		AccountID:    claims.Subject,
		Capabilities: Capabilities{CanConsumeShows: claims.CanConsumeShows},
	}
	if mask.CheckCanConsumeShows && !claims.CanConsumeShows {
		return out, fmt.Errorf("%w: account %s is not allowed to consume shows", ErrUnauthorized, claims.Subject)
	}
	return out, nil
}
