// Package service implements the session lifecycle engine: login, refresh,
// logout, and access verification over the credential store, token codec,
// revocation store, and session ledger.
package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Jeffr-K/metagate/internal/events"
	identitydomain "github.com/Jeffr-K/metagate/internal/identity/domain"
	"github.com/Jeffr-K/metagate/internal/revocation"
	"github.com/Jeffr-K/metagate/internal/security"
	sessiondomain "github.com/Jeffr-K/metagate/internal/session/domain"
	"github.com/Jeffr-K/metagate/internal/session/repository"
)

// ErrUnauthenticated is the single failure every caller-facing rejection
// collapses to: wrong credential, expired or invalid token, revoked session,
// reuse detection, and store failures that force failing closed. Which check
// failed is never revealed to the caller; security-relevant causes go to the
// event bus instead.
var ErrUnauthenticated = errors.New("unauthenticated")

// CredentialRepo is the minimal credential access the engine needs.
type CredentialRepo interface {
	GetByIdentity(ctx context.Context, identity string) (*identitydomain.Credential, error)
}

// TokenPair is the outcome of a successful login or refresh.
type TokenPair struct {
	SessionID       string
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

// Engine orchestrates the session lifecycle. It holds no per-session state
// between calls; any number of instances may run concurrently against the
// same ledger and revocation store.
type Engine struct {
	credentials CredentialRepo
	ledger      repository.Ledger
	revocations revocation.Store
	tokens      *security.TokenProvider
	verifier    *security.Verifier
	publisher   events.Publisher // may be nil

	// revokeSiblingsOnReuse also forces re-authentication of the identity's
	// other active chains when reuse is detected on one of them.
	revokeSiblingsOnReuse bool
}

// NewEngine returns an Engine with the given dependencies. publisher may be
// nil, in which case no events are emitted.
func NewEngine(
	credentials CredentialRepo,
	ledger repository.Ledger,
	revocations revocation.Store,
	tokens *security.TokenProvider,
	verifier *security.Verifier,
	publisher events.Publisher,
	revokeSiblingsOnReuse bool,
) *Engine {
	return &Engine{
		credentials:           credentials,
		ledger:                ledger,
		revocations:           revocations,
		tokens:                tokens,
		verifier:              verifier,
		publisher:             publisher,
		revokeSiblingsOnReuse: revokeSiblingsOnReuse,
	}
}

// Login authenticates identity with secret and, on success, opens a new
// session chain and returns its first token pair. Every failure mode returns
// ErrUnauthenticated; whether the identity exists is not distinguishable from
// a wrong secret, by response shape or by timing.
func (e *Engine) Login(ctx context.Context, identity, secret string) (*TokenPair, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || secret == "" {
		return nil, ErrUnauthenticated
	}

	cred, err := e.credentials.GetByIdentity(ctx, identity)
	if err != nil {
		return nil, e.failClosed("login: credential lookup", err)
	}
	if cred == nil {
		e.verifier.VerifyDummy(ctx, []byte(secret))
		return nil, ErrUnauthenticated
	}
	ok, err := e.verifier.Verify(ctx, cred.SecretHash, []byte(secret))
	if err != nil {
		return nil, e.failClosed("login: verify", err)
	}
	if !ok {
		return nil, ErrUnauthenticated
	}

	sessionID := uuid.New().String()
	chainID := uuid.New().String()
	accessToken, accessExp, err := e.tokens.IssueAccess(sessionID, identity)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExp, err := e.tokens.IssueRefresh(sessionID, chainID, 0)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &sessiondomain.Session{
		ID:        sessionID,
		Identity:  identity,
		ChainID:   chainID,
		Sequence:  0,
		Status:    sessiondomain.StatusActive,
		IssuedAt:  now,
		ExpiresAt: refreshExp,
		CreatedAt: now,
	}
	if err := e.ledger.Create(ctx, sess); err != nil {
		return nil, e.failClosed("login: ledger create", err)
	}
	e.publish(ctx, events.Event{
		Type:      events.TypeIssued,
		SessionID: sessionID,
		ChainID:   chainID,
		Identity:  identity,
		Timestamp: now,
	})

	return &TokenPair{
		SessionID:       sessionID,
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: accessExp,
	}, nil
}

// Refresh exchanges a valid refresh token for the chain's next token pair.
// Presenting an already-rotated token is treated as theft: the whole chain is
// revoked and a security alert is published, while the caller sees only the
// generic rejection.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := e.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		// The typed causes matter for security review but never for the caller.
		log.Printf("engine: refresh token rejected: %v", err)
		return nil, ErrUnauthenticated
	}

	for _, id := range []string{claims.SessionID, claims.ChainID} {
		revoked, err := e.revocations.IsRevoked(ctx, id)
		if err != nil {
			return nil, e.failClosed("refresh: revocation lookup", err)
		}
		if revoked {
			e.alert(ctx, claims.SessionID, claims.ChainID, "", "revoked refresh token presented")
			return nil, ErrUnauthenticated
		}
	}

	// Issue the successor refresh token before the ledger advance so its
	// exact expiry can extend the chain's revocation horizon atomically with
	// the rotation. Losing the race discards the unreturned token.
	nextRefresh, nextExp, err := e.tokens.IssueRefresh(claims.SessionID, claims.ChainID, claims.Sequence+1)
	if err != nil {
		return nil, err
	}

	err = e.ledger.AdvanceSequence(ctx, claims.ChainID, claims.Sequence, nextExp)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrReuseDetected):
		e.revokeChainForReuse(ctx, claims)
		return nil, ErrUnauthenticated
	case errors.Is(err, repository.ErrChainRevoked):
		e.alert(ctx, claims.SessionID, claims.ChainID, "", "refresh on revoked chain")
		return nil, ErrUnauthenticated
	case errors.Is(err, repository.ErrChainNotFound):
		return nil, ErrUnauthenticated
	default:
		return nil, e.failClosed("refresh: advance sequence", err)
	}

	sess, err := e.ledger.GetByChain(ctx, claims.ChainID)
	if err != nil || sess == nil {
		return nil, e.failClosed("refresh: session lookup", err)
	}
	accessToken, accessExp, err := e.tokens.IssueAccess(claims.SessionID, sess.Identity)
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.Event{
		Type:      events.TypeRefreshed,
		SessionID: claims.SessionID,
		ChainID:   claims.ChainID,
		Identity:  sess.Identity,
		Timestamp: time.Now().UTC(),
	})

	return &TokenPair{
		SessionID:       claims.SessionID,
		AccessToken:     accessToken,
		RefreshToken:    nextRefresh,
		AccessExpiresAt: accessExp,
	}, nil
}

// Logout revokes the session identified by the access token. Idempotent: an
// invalid or expired token, an unknown session, and an already-revoked
// session all succeed silently.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	claims, err := e.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil
	}
	return e.LogoutSession(ctx, claims.SessionID)
}

// LogoutSession revokes the session and its chain by session id. Idempotent.
func (e *Engine) LogoutSession(ctx context.Context, sessionID string) error {
	sess, err := e.ledger.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil || sess.Revoked() {
		return nil
	}
	return e.revokeSession(ctx, sess)
}

// RevokeAllForIdentity force-invalidates every active chain for identity.
func (e *Engine) RevokeAllForIdentity(ctx context.Context, identity string) error {
	sessions, err := e.ledger.ListActiveByIdentity(ctx, identity)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		if err := e.revokeSession(ctx, sess); err != nil {
			return err
		}
	}
	return nil
}

// VerifyAccess validates an access token for a protected request: signature,
// expiry, and the revocation store. A valid signature does not imply an
// unrevoked session, so the store is consulted on every call and any store
// failure rejects the token.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (*security.AccessClaims, error) {
	claims, err := e.tokens.VerifyAccess(accessToken)
	if err != nil {
		if errors.Is(err, security.ErrBadSignature) {
			log.Printf("engine: access token with bad signature presented")
		}
		return nil, ErrUnauthenticated
	}
	revoked, err := e.revocations.IsRevoked(ctx, claims.SessionID)
	if err != nil {
		return nil, e.failClosed("verify: revocation lookup", err)
	}
	if revoked {
		e.alert(ctx, claims.SessionID, "", claims.Subject, "revoked access token presented")
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

func (e *Engine) revokeSession(ctx context.Context, sess *sessiondomain.Session) error {
	now := time.Now().UTC()
	if err := e.ledger.Revoke(ctx, sess.ID, now); err != nil {
		return err
	}
	// Entries live until the chain's longest-lived token expires; afterwards
	// nothing they would block can still verify.
	if err := e.revocations.Revoke(ctx, sess.ID, sess.ExpiresAt); err != nil {
		return err
	}
	if err := e.revocations.Revoke(ctx, sess.ChainID, sess.ExpiresAt); err != nil {
		return err
	}
	e.publish(ctx, events.Event{
		Type:      events.TypeRevoked,
		SessionID: sess.ID,
		ChainID:   sess.ChainID,
		Identity:  sess.Identity,
		Timestamp: now,
	})
	return nil
}

// revokeChainForReuse is the theft response: kill the chain everywhere, alert
// downstream, and optionally take the identity's other chains with it.
func (e *Engine) revokeChainForReuse(ctx context.Context, claims *security.RefreshClaims) {
	now := time.Now().UTC()
	sess, err := e.ledger.GetByChain(ctx, claims.ChainID)
	if err != nil {
		log.Printf("engine: reuse response: session lookup failed: %v", err)
	}
	until := now
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	identity := ""
	if sess != nil {
		until = sess.ExpiresAt
		identity = sess.Identity
	}

	if err := e.ledger.RevokeChain(ctx, claims.ChainID, now); err != nil {
		log.Printf("engine: reuse response: ledger revoke failed: %v", err)
	}
	if err := e.revocations.Revoke(ctx, claims.SessionID, until); err != nil {
		log.Printf("engine: reuse response: revocation write failed: %v", err)
	}
	if err := e.revocations.Revoke(ctx, claims.ChainID, until); err != nil {
		log.Printf("engine: reuse response: revocation write failed: %v", err)
	}
	if e.revokeSiblingsOnReuse && identity != "" {
		if err := e.RevokeAllForIdentity(ctx, identity); err != nil {
			log.Printf("engine: reuse response: sibling revocation failed: %v", err)
		}
	}
	e.alert(ctx, claims.SessionID, claims.ChainID, identity, "refresh token reuse detected")
}

func (e *Engine) alert(ctx context.Context, sessionID, chainID, identity, reason string) {
	e.publish(ctx, events.Event{
		Type:      events.TypeSecurityAlert,
		SessionID: sessionID,
		ChainID:   chainID,
		Identity:  identity,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		log.Printf("engine: publish %s failed: %v", ev.Type, err)
	}
}

// failClosed logs the underlying store failure and rejects the operation as
// unauthenticated. Skipping a revocation or ledger check on error would
// silently honor revoked tokens.
func (e *Engine) failClosed(op string, err error) error {
	log.Printf("engine: %s failed closed: %v", op, err)
	return ErrUnauthenticated
}
