// Package auth proves that an address authorized a specific escrow call.
//
// A caller signs a short-lived JWT with the ed25519 key behind its address.
// The token's subject is the address and its "intent" claim is the
// blake2b-256 digest of the operation, task id and canonical arguments, so a
// signature for one call cannot be replayed against another operation, task
// or amount. The token id is returned to the escrow service, which spends it
// in the same atomic unit as the call.
package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/devasign/task-escrow/internal/escrow"
)

// DefaultTTL bounds how long a signed intent stays valid.
const DefaultTTL = 5 * time.Minute

type claims struct {
	jwt.RegisteredClaims
	Intent string `json:"intent"`
}

// IntentDigest returns the hex blake2b-256 digest bound into a signature.
func IntentDigest(intent escrow.Intent) string {
	sum := blake2b.Sum256([]byte(intent.Op + "\x00" + intent.TaskID + "\x00" + intent.Args))
	return hex.EncodeToString(sum[:])
}

// Signer issues signed intents for one key.
type Signer struct {
	key     ed25519.PrivateKey
	address escrow.Address
	ttl     time.Duration
	now     func() time.Time
}

func NewSigner(key ed25519.PrivateKey, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{
		key:     key,
		address: AddressFromPublicKey(key.Public().(ed25519.PublicKey)),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Address returns the signer's address.
func (s *Signer) Address() escrow.Address { return s.address }

// Sign returns a token authorizing intent.
func (s *Signer) Sign(intent escrow.Intent) (string, error) {
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(s.address),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Intent: IntentDigest(intent),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, c)
	return tok.SignedString(s.key)
}

// Verifier implements escrow.Authorizer over the signatures carried in the
// request context.
type Verifier struct {
	leeway time.Duration
}

func NewVerifier(leeway time.Duration) *Verifier {
	return &Verifier{leeway: leeway}
}

var _ escrow.Authorizer = (*Verifier)(nil)

// RequireAuth succeeds when some signature in ctx was made by addr for
// intent. The returned grant carries the token id and expiry.
func (v *Verifier) RequireAuth(ctx context.Context, addr escrow.Address, intent escrow.Intent) (escrow.Grant, error) {
	tokens := SignaturesFromContext(ctx)
	if len(tokens) == 0 {
		return escrow.Grant{}, fmt.Errorf("%w: no signature for %s", escrow.ErrUnauthorized, addr)
	}
	want := IntentDigest(intent)
	var lastErr error
	for _, raw := range tokens {
		c, err := v.parse(raw)
		if err != nil {
			lastErr = err
			continue
		}
		if c.Subject == string(addr) && c.Intent == want {
			return escrow.Grant{ID: c.ID, ExpiresAt: uint64(c.ExpiresAt.Unix())}, nil
		}
	}
	if lastErr != nil {
		return escrow.Grant{}, fmt.Errorf("%w: %s did not sign %s: %v", escrow.ErrUnauthorized, addr, intent, lastErr)
	}
	return escrow.Grant{}, fmt.Errorf("%w: %s did not sign %s", escrow.ErrUnauthorized, addr, intent)
}

func (v *Verifier) parse(raw string) (*claims, error) {
	tok, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (interface{}, error) {
		sub, err := t.Claims.GetSubject()
		if err != nil {
			return nil, err
		}
		return PublicKeyFromAddress(escrow.Address(sub))
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return nil, err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if c.ID == "" {
		return nil, errors.New("token has no id")
	}
	return c, nil
}
