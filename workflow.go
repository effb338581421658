package registration

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

const (
	WorkflowOneStep    = "one_step"
	WorkflowActivation = "activation"

	// DefaultActivationDays is how long an activation link stays valid
	DefaultActivationDays = 7
)

// OneStepWorkflow creates active accounts and logs them in
type OneStepWorkflow struct {
	Sessions SessionStarter
}

var _ Workflow = (*OneStepWorkflow)(nil)

// NewOneStepWorkflow returns a workflow starting sessions with sessions
func NewOneStepWorkflow(sessions SessionStarter) *OneStepWorkflow {
	return &OneStepWorkflow{Sessions: sessions}
}

func (w *OneStepWorkflow) Name() string { return WorkflowOneStep }

func (w *OneStepWorkflow) ActivateOnCreate() bool { return true }

func (w *OneStepWorkflow) AfterCreate(c *fiber.Ctx, account *Account) error {
	if w.Sessions == nil {
		return errors.New("one step workflow requires a session starter")
	}
	if err := w.Sessions.StartSession(c, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not start session for new account")
	}
	return nil
}

// ActivationWorkflow creates inactive accounts and emails an activation link
type ActivationWorkflow struct {
	Codec          *TokenCodec
	Mailer         Mailer
	Email          *ActivationEmail
	ExpirationDays int
	SiteName       string
	// SiteURL is the scheme and host activation links point to
	SiteURL string
	From    string
	// ActivationRoute is the named route that receives the token
	ActivationRoute string
}

var _ Workflow = (*ActivationWorkflow)(nil)

type ActivationWorkflowOption func(*ActivationWorkflow)

// WithExpirationDays sets how many days activation links stay valid
func WithExpirationDays(days int) ActivationWorkflowOption {
	return func(w *ActivationWorkflow) {
		w.ExpirationDays = days
	}
}

// WithSiteName sets the site name used in emails. Without it the request
// host is used.
func WithSiteName(name string) ActivationWorkflowOption {
	return func(w *ActivationWorkflow) {
		w.SiteName = name
	}
}

// WithSiteURL sets the base URL used for activation links, e.g.
// https://example.com. Without it the link is built from the request.
func WithSiteURL(base string) ActivationWorkflowOption {
	return func(w *ActivationWorkflow) {
		w.SiteURL = strings.TrimRight(base, "/")
	}
}

// WithFromAddress sets the sender of activation emails
func WithFromAddress(from string) ActivationWorkflowOption {
	return func(w *ActivationWorkflow) {
		w.From = from
	}
}

// WithActivationEmail overrides the activation email templates
func WithActivationEmail(email *ActivationEmail) ActivationWorkflowOption {
	return func(w *ActivationWorkflow) {
		if email != nil {
			w.Email = email
		}
	}
}

// NewActivationWorkflow returns a two step workflow
func NewActivationWorkflow(codec *TokenCodec, mailer Mailer, opts ...ActivationWorkflowOption) (*ActivationWorkflow, error) {
	if codec == nil {
		return nil, errors.New("activation workflow requires a token codec")
	}
	if mailer == nil {
		return nil, errors.New("activation workflow requires a mailer")
	}

	w := &ActivationWorkflow{
		Codec:           codec,
		Mailer:          mailer,
		ExpirationDays:  DefaultActivationDays,
		From:            "webmaster@localhost",
		ActivationRoute: RouteActivate,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.Email == nil {
		email, err := NewActivationEmail(nil)
		if err != nil {
			return nil, err
		}
		w.Email = email
	}

	return w, nil
}

func (w *ActivationWorkflow) Name() string { return WorkflowActivation }

func (w *ActivationWorkflow) ActivateOnCreate() bool { return false }

func (w *ActivationWorkflow) AfterCreate(c *fiber.Ctx, account *Account) error {
	key, err := w.Codec.Issue(account.Identifier)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not issue activation token")
	}

	msg, err := w.ActivationMessage(c, account, key)
	if err != nil {
		return err
	}

	if err := w.Mailer.Send(c.UserContext(), msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not send activation email").
			WithMetadata(map[string]any{"identifier": account.Identifier})
	}

	return nil
}

// ActivationMessage composes the activation email for account
func (w *ActivationWorkflow) ActivationMessage(c *fiber.Ctx, account *Account, key string) (*Message, error) {
	path, err := c.GetRouteURL(w.ActivationRoute, fiber.Map{"token": key})
	if err != nil || path == "" {
		return nil, goerrors.New("activation route is not registered", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"route": w.ActivationRoute})
	}

	site := w.SiteName
	if site == "" {
		site = c.Hostname()
	}

	base := w.SiteURL
	if base == "" {
		base = c.BaseURL()
	}

	subject, body, err := w.Email.Render(ActivationEmailData{
		ActivationKey:  key,
		ActivationURL:  base + path,
		ExpirationDays: w.ExpirationDays,
		Site:           site,
		User:           account,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not render activation email")
	}

	return &Message{
		From:    w.From,
		To:      []string{account.Email},
		Subject: subject,
		Body:    body,
	}, nil
}
