package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"metergate.org/internal/audit"
	"metergate.org/internal/obs"
)

const defaultIssuer = "metergate"

// wireClaims is the JWT payload shape on the wire.
type wireClaims struct {
	Role      string `json:"role,omitempty"`
	Tier      string `json:"tier,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator validates bearer credentials, extracts identity claims and
// enforces revocation. It is stateless per call aside from the shared
// revocation registry.
type Authenticator struct {
	secret  []byte
	issuer  string
	revoked RevocationRegistry
	emitter audit.Emitter
	now     func() time.Time
}

// Option configures Authenticator behavior.
type Option func(*Authenticator) error

// WithIssuer overrides the iss claim stamped on and required from tokens.
func WithIssuer(issuer string) Option {
	return func(a *Authenticator) error {
		issuer = strings.TrimSpace(issuer)
		if issuer == "" {
			return errors.New("auth: issuer must not be empty")
		}
		a.issuer = issuer
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(a *Authenticator) error {
		if fn != nil {
			a.now = fn
		}
		return nil
	}
}

// WithAuditEmitter sets the sink for authentication events.
func WithAuditEmitter(e audit.Emitter) Option {
	return func(a *Authenticator) error {
		if e != nil {
			a.emitter = e
		}
		return nil
	}
}

// NewAuthenticator constructs an Authenticator signing and verifying HS256
// tokens with the given secret. The revocation registry is shared,
// process-wide state injected once at startup.
func NewAuthenticator(secret string, revoked RevocationRegistry, opts ...Option) (*Authenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if revoked == nil {
		return nil, errors.New("auth: revocation registry is required")
	}
	a := &Authenticator{
		secret:  []byte(secret),
		issuer:  defaultIssuer,
		revoked: revoked,
		emitter: audit.NopEmitter{},
		now:     time.Now,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Issue mints a signed token for the subject. Access tokens must carry a
// known role and tier; refresh tokens carry neither.
func (a *Authenticator) Issue(subject string, role Role, tier Tier, tokenType TokenType, ttl time.Duration) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("auth: subject is required")
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("auth: ttl must be greater than zero")
	}
	if !tokenType.Known() {
		return "", time.Time{}, fmt.Errorf("auth: unsupported token type %q", tokenType)
	}
	if tokenType == TokenAccess {
		if !role.Known() {
			return "", time.Time{}, fmt.Errorf("auth: unknown role %q", role)
		}
		if !tier.Known() {
			return "", time.Time{}, fmt.Errorf("auth: unknown tier %q", tier)
		}
	}

	now := a.now().UTC()
	expiresAt := now.Add(ttl)
	wc := wireClaims{
		TokenType: string(tokenType),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	if tokenType == TokenAccess {
		wc.Role = string(role)
		wc.Tier = string(tier)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wc).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify validates a bearer credential and returns its claims. Checks run in
// a fixed order: structure, revocation, signature and expiry, then claim
// validity. Revocation is checked before the signature so revoked tokens are
// rejected cheaply. Verify never mutates state.
func (a *Authenticator) Verify(ctx context.Context, token string, requiredType TokenType) (Claims, error) {
	token = strings.TrimSpace(token)

	if token == "" {
		return Claims{}, a.fail(ctx, ErrMalformedToken, "empty token")
	}
	segments := strings.Split(token, ".")
	if len(segments) != 3 || segments[0] == "" || segments[1] == "" || segments[2] == "" {
		return Claims{}, a.fail(ctx, ErrMalformedToken, "token structure")
	}

	if a.revoked.Contains(token) {
		return Claims{}, a.fail(ctx, ErrRevokedToken, "token revoked")
	}
	// Unverified decode is used only to look up the token id in the
	// revocation registry; all claim values below come from the verified
	// parse.
	var peek wireClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &peek); err != nil {
		return Claims{}, a.fail(ctx, ErrMalformedToken, "payload decode")
	}
	if peek.ID != "" && a.revoked.Contains(peek.ID) {
		return Claims{}, a.fail(ctx, ErrRevokedToken, "token revoked")
	}

	parsed, err := jwt.ParseWithClaims(token, &wireClaims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, a.fail(ctx, ErrExpiredToken, "token expired")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, a.fail(ctx, ErrInvalidSignature, "signature mismatch")
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, a.fail(ctx, ErrMalformedToken, "token structure")
		default:
			return Claims{}, a.fail(ctx, ErrInvalidToken, "token validation")
		}
	}
	wc, ok := parsed.Claims.(*wireClaims)
	if !ok || !parsed.Valid {
		return Claims{}, a.fail(ctx, ErrInvalidToken, "token validation")
	}

	claims, err := a.buildClaims(wc, requiredType)
	if err != nil {
		return Claims{}, a.fail(ctx, err, "claim validation")
	}

	a.emitter.Emit(ctx, audit.Event{
		EventType: "authentication_success",
		ActorID:   claims.Subject,
		Resource:  "token",
		Action:    "verify",
		Outcome:   audit.OutcomeSuccess,
		Severity:  audit.SeverityInfo,
		Details:   map[string]any{"token_type": string(claims.TokenType)},
	})
	return claims, nil
}

// buildClaims validates claim presence and enumerations and produces the
// immutable Claims value. Role and tier are required and validated only for
// access tokens; unknown values fail closed.
func (a *Authenticator) buildClaims(wc *wireClaims, requiredType TokenType) (Claims, error) {
	if wc.ExpiresAt == nil || wc.IssuedAt == nil {
		return Claims{}, fmt.Errorf("%w: missing timestamps", ErrInvalidClaims)
	}
	if strings.TrimSpace(wc.Subject) == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}
	if !wc.ExpiresAt.Time.After(wc.IssuedAt.Time) {
		return Claims{}, fmt.Errorf("%w: expiry precedes issued-at", ErrInvalidClaims)
	}
	if a.issuer != "" && !strings.EqualFold(wc.Issuer, a.issuer) {
		return Claims{}, fmt.Errorf("%w: unexpected issuer", ErrInvalidClaims)
	}

	tokenType := TokenType(strings.ToLower(strings.TrimSpace(wc.TokenType)))
	if !tokenType.Known() {
		return Claims{}, fmt.Errorf("%w: unknown token type", ErrInvalidClaims)
	}
	if requiredType.Known() && tokenType != requiredType {
		return Claims{}, fmt.Errorf("%w: token type mismatch", ErrInvalidClaims)
	}

	claims := Claims{
		Subject:   wc.Subject,
		TokenType: tokenType,
		IssuedAt:  wc.IssuedAt.Time,
		ExpiresAt: wc.ExpiresAt.Time,
		TokenID:   wc.ID,
	}
	if tokenType == TokenAccess {
		role := NormalizeRole(wc.Role)
		tier := NormalizeTier(wc.Tier)
		if !role.Known() {
			return Claims{}, fmt.Errorf("%w: unknown role", ErrInvalidClaims)
		}
		if !tier.Known() {
			return Claims{}, fmt.Errorf("%w: unknown tier", ErrInvalidClaims)
		}
		claims.Role = role
		claims.Tier = tier
	}
	return claims, nil
}

// Revoke adds the token to the revocation registry. The token id is used when
// the payload yields one; otherwise the raw token is stored.
func (a *Authenticator) Revoke(ctx context.Context, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	entry := token
	var peek wireClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &peek); err == nil && peek.ID != "" {
		entry = peek.ID
	}
	a.revoked.Add(entry)

	a.emitter.Emit(ctx, audit.Event{
		EventType: "token_revoked",
		ActorID:   peek.Subject,
		Resource:  "token",
		Action:    "revoke",
		Outcome:   audit.OutcomeSuccess,
		Severity:  audit.SeverityWarning,
	})
}

// fail records the verification failure with its reason code and the caller
// address, emits the redacted audit event, and returns err unchanged.
func (a *Authenticator) fail(ctx context.Context, err error, detail string) error {
	reason := ReasonCode(err)
	obs.AuthFailure(reason)
	obs.LogEntry(map[string]any{
		"level":       "warn",
		"msg":         "token verification failed",
		"reason":      reason,
		"detail":      detail,
		"remote_addr": audit.RemoteAddrFromContext(ctx),
	})
	a.emitter.Emit(ctx, audit.Event{
		EventType: "authentication_failure",
		Resource:  "token",
		Action:    "verify",
		Outcome:   audit.OutcomeFailure,
		Severity:  audit.SeverityWarning,
		Details:   map[string]any{"reason": reason},
	})
	return err
}
