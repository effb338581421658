package registration

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// AccountStore persists account records. Identifier uniqueness must be
// enforced by the store itself; CreateAccount returns ErrAccountConflict when
// the identifier is already taken.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *Account) (*Account, error)
	FindByIdentifier(ctx context.Context, identifier string) (*Account, error)
	UsernameExists(ctx context.Context, username string, foldCase bool) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	MarkActive(ctx context.Context, account *Account) (*Account, error)
}

// PasswordHasher turns a cleartext password into a storable credential
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Mailer delivers composed messages
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// SessionStarter authenticates the current request as the given account
type SessionStarter interface {
	StartSession(c *fiber.Ctx, account *Account) error
}

// ErrorReporter receives reports for unexpected request failures
type ErrorReporter interface {
	Report(ctx context.Context, report *ErrorReport) error
}

// Workflow decides the initial account state and what happens once the
// account has been stored
type Workflow interface {
	Name() string
	ActivateOnCreate() bool
	AfterCreate(c *fiber.Ctx, account *Account) error
}

// NewDefaultLogger returns the stdout logger used when none is configured
func NewDefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] REGISTRATION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] REGISTRATION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] REGISTRATION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
