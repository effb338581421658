package registration

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultSessionCookieName = "registration_session"
	defaultSessionTTL        = 24 * time.Hour
)

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = errors.New("unable to decode session")

// SessionClaims are carried by the session cookie set after a one-step
// registration
type SessionClaims struct {
	jwt.RegisteredClaims
	Identifier string `json:"identifier"`
}

// JWTSessionStarter logs the new account in by setting a signed session
// cookie
type JWTSessionStarter struct {
	signingKey []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

type SessionOption func(*JWTSessionStarter)

// WithSessionCookieName overrides the cookie name
func WithSessionCookieName(name string) SessionOption {
	return func(s *JWTSessionStarter) {
		if name != "" {
			s.cookieName = name
		}
	}
}

// WithSessionTTL sets the session lifetime
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *JWTSessionStarter) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSecureSessionCookie marks the cookie as HTTPS only
func WithSecureSessionCookie(secure bool) SessionOption {
	return func(s *JWTSessionStarter) {
		s.secure = secure
	}
}

// WithSessionClock overrides the clock used to stamp sessions
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *JWTSessionStarter) {
		if now != nil {
			s.now = now
		}
	}
}

// NewJWTSessionStarter returns a SessionStarter signing with signingKey
func NewJWTSessionStarter(signingKey []byte, opts ...SessionOption) *JWTSessionStarter {
	s := &JWTSessionStarter{
		signingKey: signingKey,
		cookieName: DefaultSessionCookieName,
		ttl:        defaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CookieName is the name of the session cookie
func (s *JWTSessionStarter) CookieName() string {
	return s.cookieName
}

// StartSession implements SessionStarter
func (s *JWTSessionStarter) StartSession(c *fiber.Ctx, account *Account) error {
	if account == nil {
		return errors.New("cannot start session without account")
	}

	token, err := s.Sign(account)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(s.ttl),
		HTTPOnly: true,
		Secure:   s.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return nil
}

// Sign returns the session token for account
func (s *JWTSessionStarter) Sign(account *Account) (string, error) {
	now := s.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Identifier: account.Identifier,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

// Parse validates a session token and returns its claims
func (s *JWTSessionStarter) Parse(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, ErrUnableToDecodeSession
	}

	return claims, nil
}

// SessionFromRequest reads and validates the session cookie on c
func (s *JWTSessionStarter) SessionFromRequest(c *fiber.Ctx) (*SessionClaims, error) {
	raw := c.Cookies(s.cookieName)
	if raw == "" {
		return nil, ErrUnableToDecodeSession
	}
	return s.Parse(raw)
}
