package auth

import "errors"

var (
	ErrInvalidToken            = errors.New("auth: invalid token")
	ErrExpiredToken            = errors.New("auth: token is expired")
	ErrInvalidSignature        = errors.New("auth: invalid signature")
	ErrInvalidClaims           = errors.New("auth: invalid claims")
	ErrMissingSigningKey       = errors.New("auth: missing signing key")
	ErrUnexpectedSigningMethod = errors.New("auth: unexpected signing method")
)
