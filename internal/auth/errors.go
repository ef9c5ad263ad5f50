package auth

import "errors"

// Authentication failures are distinguishable by kind, never by message text.
var (
	ErrMalformedToken   = errors.New("auth: malformed token")
	ErrExpiredToken     = errors.New("auth: token expired")
	ErrRevokedToken     = errors.New("auth: token revoked")
	ErrInvalidSignature = errors.New("auth: invalid signature")
	ErrInvalidClaims    = errors.New("auth: invalid claims")
	ErrInvalidToken     = errors.New("auth: invalid token")
)

// ReasonCode maps an authentication failure to its stable reason code used in
// logs, metrics and redacted audit events.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, ErrExpiredToken):
		return "expired_token"
	case errors.Is(err, ErrRevokedToken):
		return "revoked_token"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrInvalidClaims):
		return "invalid_claims"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	default:
		return "internal_error"
	}
}

// IsAuthFailure reports whether err belongs to the authentication taxonomy.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrRevokedToken) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrInvalidClaims) ||
		errors.Is(err, ErrInvalidToken)
}
