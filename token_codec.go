package registration

import (
	"crypto/sha256"
	"errors"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// DefaultSalt namespaces activation tokens
const DefaultSalt = "registration"

const activationKeyInfo = "activation-token"

// TokenCodec issues and verifies activation tokens. A token is an HS256 JWT
// carrying the account identifier and its issuance time, so it can be checked
// without any server side state.
//
// The issuance time is stored in whole seconds, truncated toward zero. A token
// issued at T stays valid until trunc(T) + maxAgeDays, which can be up to one
// second earlier than T + maxAgeDays.
type TokenCodec struct {
	key    []byte
	now    func() time.Time
	logger Logger
}

type TokenCodecOption func(*TokenCodec)

// WithTokenClock overrides the clock used to stamp and check tokens
func WithTokenClock(now func() time.Time) TokenCodecOption {
	return func(tc *TokenCodec) {
		if now != nil {
			tc.now = now
		}
	}
}

// WithTokenLogger sets the logger used to record rejection reasons
func WithTokenLogger(logger Logger) TokenCodecOption {
	return func(tc *TokenCodec) {
		if logger != nil {
			tc.logger = logger
		}
	}
}

// NewTokenCodec derives the signing key from secret and salt. Tokens issued
// under one salt never verify under another.
func NewTokenCodec(secret []byte, salt string, opts ...TokenCodecOption) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token codec requires a secret key")
	}

	if salt == "" {
		salt = DefaultSalt
	}

	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, []byte(salt), []byte(activationKeyInfo)), key); err != nil {
		return nil, err
	}

	tc := &TokenCodec{
		key:    key,
		now:    time.Now,
		logger: defLogger{},
	}

	for _, opt := range opts {
		opt(tc)
	}

	return tc, nil
}

// Issue returns a URL safe token for identifier
func (tc *TokenCodec) Issue(identifier string) (string, error) {
	if identifier == "" {
		return "", errors.New("cannot issue activation token for empty identifier")
	}

	claims := jwt.RegisteredClaims{
		Subject:  identifier,
		IssuedAt: jwt.NewNumericDate(tc.now()),
		ID:       uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tc.key)
}

// Verify returns the identifier embedded in token. Every failure returns
// ErrInvalidActivationToken; the reason is only logged.
func (tc *TokenCodec) Verify(token string, maxAgeDays int) (string, error) {
	identifier, reason := tc.verify(token, maxAgeDays)
	if reason != "" {
		tc.logger.Debug("activation token rejected: %s", reason)
		return "", &ActivationError{Reason: reason}
	}
	return identifier, nil
}

func (tc *TokenCodec) verify(token string, maxAgeDays int) (string, string) {
	if token == "" || maxAgeDays < 0 {
		return "", ActivationInvalidKey
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return tc.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(tc.now),
	)
	if err != nil || parsed == nil || !parsed.Valid {
		return "", ActivationInvalidKey
	}

	if claims.Subject == "" || claims.IssuedAt == nil {
		return "", ActivationInvalidKey
	}

	expiresAt := claims.IssuedAt.Time.Add(time.Duration(maxAgeDays) * 24 * time.Hour)
	if expiresAt.Before(tc.now()) {
		return "", ActivationExpired
	}

	return claims.Subject, ""
}
