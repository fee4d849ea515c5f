// Package auth verifies shopper bearer tokens against an identity provider's JWKS.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abgdnv/storefront/pkg/config"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

type Verifier interface {
	Verify(ctx context.Context, tokenString string) (jwt.Token, error)
}

// Fetcher loads the key set published at url.
type Fetcher func(ctx context.Context, url string) (jwk.Set, error)

func fetchJWKS(ctx context.Context, url string) (jwk.Set, error) {
	return jwk.Fetch(ctx, url)
}

// JWTVerifier checks signature, expiry, issuer and authorized party of a token.
// The key set is refetched at most once per minInterval; a failed refetch
// keeps serving the previous set.
type JWTVerifier struct {
	mu sync.RWMutex

	jwksURL  string
	issuer   string
	clientID string
	fetch    Fetcher
	now      func() time.Time

	cachedSet     jwk.Set
	lastRefreshed time.Time
	minInterval   time.Duration
}

// NewJWTVerifier creates a verifier and fetches the key set once, so a bad
// IdP configuration fails at startup.
func NewJWTVerifier(ctx context.Context, cfg config.IdP) (*JWTVerifier, error) {
	return newJWTVerifier(ctx, cfg, fetchJWKS)
}

func newJWTVerifier(ctx context.Context, cfg config.IdP, fetch Fetcher) (*JWTVerifier, error) {
	v := &JWTVerifier{
		jwksURL:     cfg.JwksURL,
		issuer:      cfg.Issuer,
		clientID:    cfg.ClientID,
		minInterval: cfg.MinInterval,
		fetch:       fetch,
		now:         time.Now,
	}
	if _, err := v.keySet(ctx); err != nil {
		return nil, fmt.Errorf("initial JWKS fetch failed: %w", err)
	}
	return v, nil
}

func (v *JWTVerifier) fresh() (jwk.Set, bool) {
	if v.cachedSet != nil && v.now().Sub(v.lastRefreshed) < v.minInterval {
		return v.cachedSet, true
	}
	return nil, false
}

func (v *JWTVerifier) keySet(ctx context.Context) (jwk.Set, error) {
	v.mu.RLock()
	set, ok := v.fresh()
	v.mu.RUnlock()
	if ok {
		return set, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	// another goroutine may have refreshed while we waited
	if set, ok := v.fresh(); ok {
		return set, nil
	}
	set, err := v.fetch(ctx, v.jwksURL)
	if err != nil {
		if v.cachedSet != nil {
			return v.cachedSet, nil
		}
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", v.jwksURL, err)
	}
	v.cachedSet = set
	v.lastRefreshed = v.now()
	return set, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (jwt.Token, error) {
	set, err := v.keySet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get keyset for verification: %w", err)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithClaimValue("azp", v.clientID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	return token, nil
}
