package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"strings"
)

// ErrInvalidKey is returned when PEM or key type is invalid.
var ErrInvalidKey = errors.New("invalid key")

// SigningKey is one member of the rotating keyset: a key identifier plus key
// material. The private half may be nil for keys that are only accepted for
// verification (the previous key after a rotation).
type SigningKey struct {
	ID      string
	Private crypto.Signer
	Public  crypto.PublicKey
}

// Keyset holds the active signing key and at most one predecessor. Tokens are
// issued with Current only; verification accepts Current and Previous, so a
// rotation never invalidates outstanding tokens mid-window.
type Keyset struct {
	Current  SigningKey
	Previous *SigningKey
}

// NewKeyset builds a Keyset from the current key and an optional previous key.
// current must carry both halves; previous needs only the public half.
func NewKeyset(current SigningKey, previous *SigningKey) (*Keyset, error) {
	if current.ID == "" || current.Private == nil || current.Public == nil {
		return nil, ErrInvalidKey
	}
	if previous != nil {
		if previous.ID == "" || previous.Public == nil {
			return nil, ErrInvalidKey
		}
		if previous.ID == current.ID {
			return nil, ErrInvalidKey
		}
	}
	return &Keyset{Current: current, Previous: previous}, nil
}

// VerificationKey returns the public key for the given key identifier, or
// false when the identifier matches neither the current nor the previous key.
func (k *Keyset) VerificationKey(kid string) (crypto.PublicKey, bool) {
	if kid == "" {
		return nil, false
	}
	if kid == k.Current.ID {
		return k.Current.Public, true
	}
	if k.Previous != nil && kid == k.Previous.ID {
		return k.Previous.Public, true
	}
	return nil, false
}

// LoadPEM reads content from path if s does not look like inline PEM; otherwise returns s as bytes.
func LoadPEM(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if strings.HasPrefix(s, "-----BEGIN") {
		return []byte(s), nil
	}
	return os.ReadFile(s)
}

// ParsePrivateKey parses a PEM-encoded private key (RSA or ECDSA). s may be inline PEM or a file path.
func ParsePrivateKey(s string) (crypto.Signer, error) {
	pemBytes, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidKey
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, ErrInvalidKey
		}
		return signer, nil
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	default:
		return nil, ErrInvalidKey
	}
}

// ParsePublicKey parses a PEM-encoded public key (RSA or ECDSA). s may be inline PEM or a file path.
func ParsePublicKey(s string) (crypto.PublicKey, error) {
	pemBytes, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidKey
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	default:
		return nil, ErrInvalidKey
	}
}

// KeyAlg returns "RS256" for RSA and "ES256" for ECDSA P-256; empty otherwise.
func KeyAlg(pub crypto.PublicKey) string {
	switch pub.(type) {
	case *rsa.PublicKey:
		return "RS256"
	case *ecdsa.PublicKey:
		return "ES256"
	default:
		return ""
	}
}
