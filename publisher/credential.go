package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Credential is attached to an outbound publish call. A non-empty Token is
// injected as a reserved "Authorization" message attribute so downstream
// subscribers can verify the message originated from this pipeline.
type Credential struct {
	Token string
}

// CredentialSource produces a Credential for an outbound publish call.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
type CredentialSource interface {
	Credentials(ctx context.Context) (Credential, error)
}

// StaticCredentialSource always returns the same credential. Useful for
// local development and tests, or when the downstream topic requires no
// message-level authentication (the zero value returns an empty token).
type StaticCredentialSource struct {
	Credential Credential
}

// Credentials returns the configured static credential.
func (s StaticCredentialSource) Credentials(context.Context) (Credential, error) {
	return s.Credential, nil
}

// JWTCredentialSource mints a short-lived HS256 bearer token signed with
// SigningKey, reusing the cached token until it is within RefreshBefore of
// expiry.
type JWTCredentialSource struct {
	SigningKey    []byte
	Issuer        string
	Audience      string
	TTL           time.Duration
	RefreshBefore time.Duration

	mu        sync.Mutex
	cached    string
	expiresAt time.Time
}

// Credentials returns a cached or freshly minted JWT bearer token.
func (s *JWTCredentialSource) Credentials(context.Context) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refreshBefore := s.RefreshBefore
	if refreshBefore <= 0 {
		refreshBefore = 30 * time.Second
	}

	if s.cached != "" && time.Until(s.expiresAt) > refreshBefore {
		return Credential{Token: s.cached}, nil
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := jwt.MapClaims{
		"iss": s.Issuer,
		"aud": s.Audience,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
		"jti": uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.SigningKey)
	if err != nil {
		return Credential{}, fmt.Errorf("publisher: sign jwt credential: %w", err)
	}

	s.cached = signed
	s.expiresAt = expiresAt
	return Credential{Token: signed}, nil
}

// CompositeCredentialSource tries each source in order and returns the
// first successful credential, mirroring auth.CompositeAuthenticator's
// stop-on-first-success semantics on the outbound side.
type CompositeCredentialSource struct {
	Sources []CredentialSource
}

// Credentials tries each configured source in order.
func (s CompositeCredentialSource) Credentials(ctx context.Context) (Credential, error) {
	var lastErr error
	for _, src := range s.Sources {
		cred, err := src.Credentials(ctx)
		if err == nil {
			return cred, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("publisher: no credential sources configured")
	}
	return Credential{}, lastErr
}

var (
	_ CredentialSource = StaticCredentialSource{}
	_ CredentialSource = (*JWTCredentialSource)(nil)
	_ CredentialSource = CompositeCredentialSource{}
)
