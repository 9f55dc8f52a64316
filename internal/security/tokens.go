package security

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failures are typed so the engine can log and alert on them
// differently; callers outside the engine must collapse all three to a single
// generic rejection.
var (
	// ErrTokenMalformed is returned when a token cannot be parsed or its
	// claims do not match the expected shape, issuer, or audience.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrTokenExpired is returned when a structurally valid token is past its expiry.
	ErrTokenExpired = errors.New("expired token")
	// ErrBadSignature is returned when the signature does not verify against
	// any key in the keyset, including tokens tagged with an unknown key id.
	ErrBadSignature = errors.New("bad token signature")
)

// AccessClaims holds the JWT claims for the short-lived access token.
// Subject carries the identity; SessionID binds the token to its session for
// revocation checks.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// RefreshClaims holds the JWT claims for the refresh token. ChainID and
// Sequence bind the token to its refresh chain so the ledger can detect reuse
// of an already-rotated token.
type RefreshClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	ChainID   string `json:"chain"`
	Sequence  uint64 `json:"seq"`
}

// TokenProvider issues and verifies signed session tokens (RS256 or ES256).
// Each token's header carries the id of the key that signed it; verification
// accepts the current and the immediately previous key, so key rotation needs
// no downtime.
type TokenProvider struct {
	keys       *Keyset
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenProvider returns a TokenProvider signing with keys.Current. Both
// TTLs must be positive so every issued token expires strictly after it is
// issued.
func NewTokenProvider(keys *Keyset, issuer, audience string, accessTTL, refreshTTL time.Duration) (*TokenProvider, error) {
	if keys == nil {
		return nil, ErrInvalidKey
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	return &TokenProvider{
		keys:       keys,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// IssueAccess issues a short-lived access token for the given session and
// identity. Returns the signed token and its expiry.
func (p *TokenProvider) IssueAccess(sessionID, identity string) (string, time.Time, error) {
	now := p.now().UTC()
	expiresAt := now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
	}
	token, err := p.sign(claims)
	return token, expiresAt, err
}

// IssueRefresh issues a refresh token bound to the given chain and sequence
// number. Returns the signed token and its expiry.
func (p *TokenProvider) IssueRefresh(sessionID, chainID string, sequence uint64) (string, time.Time, error) {
	now := p.now().UTC()
	expiresAt := now.Add(p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
		ChainID:   chainID,
		Sequence:  sequence,
	}
	token, err := p.sign(claims)
	return token, expiresAt, err
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	key := p.keys.Current
	var method jwt.SigningMethod
	switch key.Public.(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidKey
	}
	t := jwt.NewWithClaims(method, claims)
	t.Header["kid"] = key.ID
	return t.SignedString(key.Private)
}

// VerifyAccess checks signature, expiry, issuer, and audience of an access
// token. Returns the claims, or one of ErrTokenMalformed, ErrTokenExpired,
// ErrBadSignature.
func (p *TokenProvider) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if err := p.checkRegistered(&claims.RegisteredClaims); err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// VerifyRefresh checks signature, expiry, issuer, and audience of a refresh
// token. Returns the claims, or one of ErrTokenMalformed, ErrTokenExpired,
// ErrBadSignature.
func (p *TokenProvider) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if err := p.checkRegistered(&claims.RegisteredClaims); err != nil {
		return nil, err
	}
	if claims.SessionID == "" || claims.ChainID == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (p *TokenProvider) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		pub, ok := p.keys.VerificationKey(kid)
		if !ok {
			return nil, ErrBadSignature
		}
		return pub, nil
	},
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadSignature), errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return ErrBadSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return ErrTokenExpired
		default:
			return ErrTokenMalformed
		}
	}
	if !token.Valid {
		return ErrBadSignature
	}
	return nil
}

func (p *TokenProvider) checkRegistered(rc *jwt.RegisteredClaims) error {
	if rc.ExpiresAt == nil {
		return ErrTokenMalformed
	}
	if rc.Issuer != p.issuer {
		return ErrTokenMalformed
	}
	for _, a := range rc.Audience {
		if a == p.audience {
			return nil
		}
	}
	return ErrTokenMalformed
}
