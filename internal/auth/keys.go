package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/devasign/task-escrow/internal/escrow"
)

// ErrMalformedAddress is returned when an address is not a hex ed25519 public key.
var ErrMalformedAddress = errors.New("address is not a hex ed25519 public key")

// GenerateKey creates a new signing key and its address.
func GenerateKey() (escrow.Address, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", nil, err
	}
	return AddressFromPublicKey(pub), priv, nil
}

// AddressFromPublicKey encodes pub as an address.
func AddressFromPublicKey(pub ed25519.PublicKey) escrow.Address {
	return escrow.Address(hex.EncodeToString(pub))
}

// PublicKeyFromAddress decodes addr back to a public key.
func PublicKeyFromAddress(addr escrow.Address) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(strings.ToLower(string(addr)))
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, ErrMalformedAddress
	}
	return ed25519.PublicKey(raw), nil
}

// PrivateKeyFromSeed rebuilds a key from its hex-encoded 32-byte seed.
func PrivateKeyFromSeed(seedHex string) (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(strings.TrimSpace(seedHex))
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, errors.New("seed must be 32 hex-encoded bytes")
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// SeedHex returns the hex-encoded seed of key.
func SeedHex(key ed25519.PrivateKey) string {
	return hex.EncodeToString(key.Seed())
}
