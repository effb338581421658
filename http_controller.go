package registration

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-print"
)

// Route names, usable with RedirectRoute and c.GetRouteURL
const (
	RouteRegister             = "registration.register"
	RouteRegisterPost         = "registration.register.post"
	RouteRegistrationComplete = "registration.complete"
	RouteRegistrationClosed   = "registration.closed"
	RouteActivationComplete   = "registration.activation_complete"
	RouteActivate             = "registration.activate"
)

// MessageActivationFailed is the only activation error users ever see
const MessageActivationFailed = "The activation link is invalid or has expired."

type RegistrationControllerRoutes struct {
	Register             string
	RegistrationComplete string
	RegistrationClosed   string
	Activate             string
	ActivationComplete   string
}

type RegistrationControllerViews struct {
	Register             string
	RegistrationComplete string
	RegistrationClosed   string
	ActivationComplete   string
	ActivationFailed     string
}

type RegistrationController struct {
	Debug                bool
	Logger               Logger
	Store                AccountStore
	Repos                RepositoryManager
	Hasher               PasswordHasher
	Form                 *RegistrationForm
	AccountType          AccountType
	Workflow             Workflow
	Signals              *Signals
	Routes               *RegistrationControllerRoutes
	Views                *RegistrationControllerViews
	SuccessURL           RedirectTarget
	ActivationSuccessURL RedirectTarget
	featureGate          gate.FeatureGate
}

type RegistrationControllerOption func(*RegistrationController) *RegistrationController

// WithStore sets the account store
func WithStore(store AccountStore) RegistrationControllerOption {
	return func(rc *RegistrationController) *RegistrationController {
		rc.Store = store
		return rc
	}
}

// WithRepositoryManager stores accounts through repos and runs the register
// and activate commands inside its transactions
func WithRepositoryManager(repos RepositoryManager) RegistrationControllerOption {
	return func(rc *RegistrationController) *RegistrationController {
		rc.Repos = repos
		if repos != nil {
			rc.Store = repos.Accounts()
		}
		return rc
	}
}

// WithWorkflow selects the one step or activation workflow
func WithWorkflow(w Workflow) RegistrationControllerOption {
	return func(rc *RegistrationController) *RegistrationController {
		rc.Workflow = w
		return rc
	}
}

// WithForm sets the registration form
func WithForm(form *RegistrationForm) RegistrationControllerOption {
	return func(rc *RegistrationController) *RegistrationController {
		if form != nil {
			rc.Form = form
		}
		return rc
	}
}

// WithAccountType sets the account type the views operate on. It must match
// the form's account type.
func WithAccountType(t AccountType) RegistrationControllerOption {
	return func(rc *RegistrationController) *RegistrationController {
		rc.AccountType = t
		return rc
	}
}

// WithSignals injects the signal bus
func WithSignals(s *Signals) RegistrationControllerOption {
	return func(rc *RegistrationController) *RegistrationController {
		if s != nil {
			rc.Signals = s
		}
		return rc
	}
}

// WithFeatureGate sets the gate deciding whether registration is open
func WithFeatureGate(g gate.FeatureGate) RegistrationControllerOption {
	return func(rc *RegistrationController) *RegistrationController {
		rc.featureGate = g
		return rc
	}
}

// WithPasswordHasher overrides the bcrypt hasher
func WithPasswordHasher(h PasswordHasher) RegistrationControllerOption {
	return func(rc *RegistrationController) *RegistrationController {
		if h != nil {
			rc.Hasher = h
		}
		return rc
	}
}

// WithSuccessURL sets where a successful registration redirects to
func WithSuccessURL(target RedirectTarget) RegistrationControllerOption {
	return func(rc *RegistrationController) *RegistrationController {
		rc.SuccessURL = target
		return rc
	}
}

// WithActivationSuccessURL sets where a successful activation redirects to
func WithActivationSuccessURL(target RedirectTarget) RegistrationControllerOption {
	return func(rc *RegistrationController) *RegistrationController {
		rc.ActivationSuccessURL = target
		return rc
	}
}

// WithLogger sets the controller logger
func WithLogger(logger Logger) RegistrationControllerOption {
	return func(rc *RegistrationController) *RegistrationController {
		if logger != nil {
			rc.Logger = logger
		}
		return rc
	}
}

// WithDebug dumps validated payloads, passwords scrubbed
func WithDebug(debug bool) RegistrationControllerOption {
	return func(rc *RegistrationController) *RegistrationController {
		rc.Debug = debug
		return rc
	}
}

// NewRegistrationController builds the controller and checks its wiring. A
// form whose account type differs from the view account type is rejected.
func NewRegistrationController(opts ...RegistrationControllerOption) (*RegistrationController, error) {
	rc := &RegistrationController{
		Logger:      defLogger{},
		Hasher:      NewBcryptHasher(0),
		Form:        NewRegistrationForm(),
		AccountType: UsernameAccount,
		Signals:     NewSignals(),
		Routes: &RegistrationControllerRoutes{
			Register:             "/register",
			RegistrationComplete: "/register/complete",
			RegistrationClosed:   "/register/closed",
			Activate:             "/activate/:token",
			ActivationComplete:   "/activate/complete",
		},
		Views: &RegistrationControllerViews{
			Register:             "register",
			RegistrationComplete: "registration_complete",
			RegistrationClosed:   "registration_closed",
			ActivationComplete:   "activation_complete",
			ActivationFailed:     "activation_failed",
		},
	}

	for _, opt := range opts {
		rc = opt(rc)
	}

	if rc.Store == nil {
		return nil, errors.New("registration controller requires an AccountStore")
	}

	if rc.Workflow == nil {
		return nil, errors.New("registration controller requires a Workflow")
	}

	if rc.Form.AccountType() != rc.AccountType {
		return nil, NewAccountTypeMismatchError(rc.Form.AccountType(), rc.AccountType)
	}

	rc.SuccessURL = rc.SuccessURL.orDefault(RedirectRoute(RouteRegistrationComplete, nil))
	rc.ActivationSuccessURL = rc.ActivationSuccessURL.orDefault(RedirectRoute(RouteActivationComplete, nil))

	return rc, nil
}

// RegisterRoutes builds a controller and mounts its routes on app
func RegisterRoutes(app fiber.Router, opts ...RegistrationControllerOption) (*RegistrationController, error) {
	controller, err := NewRegistrationController(opts...)
	if err != nil {
		return nil, err
	}
	controller.Mount(app)
	return controller, nil
}

// Mount adds the registration routes to app. Activation routes are only
// added for the activation workflow.
func (rc *RegistrationController) Mount(app fiber.Router) {
	app.Get(rc.Routes.Register, rc.RegistrationShow).Name(RouteRegister)
	app.Post(rc.Routes.Register, rc.RegistrationCreate).Name(RouteRegisterPost)
	app.Get(rc.Routes.RegistrationComplete, rc.RegistrationComplete).Name(RouteRegistrationComplete)
	app.Get(rc.Routes.RegistrationClosed, rc.RegistrationClosed).Name(RouteRegistrationClosed)

	if _, ok := rc.Workflow.(*ActivationWorkflow); !ok {
		return
	}

	// the static page goes first so it is not captured by :token
	app.Get(rc.Routes.ActivationComplete, rc.ActivationComplete).Name(RouteActivationComplete)
	app.Get(rc.Routes.Activate, rc.Activate).Name(RouteActivate)
}

// guardOpen redirects to the closed page when registration is disabled
func (rc *RegistrationController) guardOpen(c *fiber.Ctx) (bool, error) {
	err := requireRegistrationOpen(c.UserContext(), rc.featureGate)
	if err == nil {
		return true, nil
	}

	if IsRegistrationClosed(err) {
		return false, rc.redirect(c, RedirectRoute(RouteRegistrationClosed, nil))
	}

	return false, err
}

func (rc *RegistrationController) RegistrationShow(c *fiber.Ctx) error {
	if open, err := rc.guardOpen(c); !open {
		return err
	}
	return rc.renderForm(c, fiber.StatusOK, &RegistrationPayload{}, FormErrors{})
}

func (rc *RegistrationController) RegistrationCreate(c *fiber.Ctx) error {
	MarkSensitivePostParameters(c)

	if open, err := rc.guardOpen(c); !open {
		return err
	}

	payload := new(RegistrationPayload)
	if err := c.BodyParser(payload); err != nil {
		rc.Logger.Error("register account parse payload: %v", err)
		return rc.renderForm(c, fiber.StatusBadRequest, payload, FormErrors{
			"form": "Failed to parse form",
		})
	}

	ctx := c.UserContext()

	formErrs, err := rc.Form.Validate(ctx, rc.Store, payload)
	if err != nil {
		return err
	}

	if len(formErrs) > 0 {
		rc.Logger.Debug("register account invalid payload: %v", formErrs)
		return rc.renderForm(c, fiber.StatusOK, payload, formErrs)
	}

	if rc.Debug {
		fmt.Println("======= REGISTRATION ======")
		fmt.Println(print.MaybePrettyJSON(payload.Scrubbed()))
		fmt.Println("===========================")
	}

	var account *Account
	register := NewRegisterAccountHandler(rc.Store, rc.Hasher).WithRepositoryManager(rc.Repos)
	err = register.Execute(ctx, RegisterAccountMessage{
		Form:    rc.Form,
		Payload: payload,
		Active:  rc.Workflow.ActivateOnCreate(),
		OnResponse: func(a *Account) {
			account = a
		},
	})
	if err != nil {
		if IsConflictError(err) {
			rc.Logger.Info("register account conflict: %v", err)
			return rc.renderForm(c, fiber.StatusConflict, payload, rc.conflictErrors())
		}
		return err
	}

	ctx = WithAccountContext(ctx, account)
	c.SetUserContext(ctx)

	if err := rc.Workflow.AfterCreate(c, account); err != nil {
		return err
	}

	if err := rc.Signals.Publish(ctx, Event{
		Name:    EventUserRegistered,
		Account: account,
		Request: NewRequestInfo(c),
	}); err != nil {
		return err
	}

	rc.Logger.Info("account registered: %s (workflow %s)", account.Identifier, rc.Workflow.Name())

	return rc.redirect(c, rc.SuccessURL)
}

func (rc *RegistrationController) conflictErrors() FormErrors {
	if rc.AccountType.IdentifierField == EmailAccount.IdentifierField {
		return FormErrors{FieldEmail: MessageDuplicateEmail}
	}
	return FormErrors{FieldUsername: MessageDuplicateUsername}
}

func (rc *RegistrationController) RegistrationComplete(c *fiber.Ctx) error {
	data := fiber.Map{
		"activation_required": false,
	}
	if w, ok := rc.Workflow.(*ActivationWorkflow); ok {
		data["activation_required"] = true
		data["expiration_days"] = w.ExpirationDays
	}
	return c.Render(rc.Views.RegistrationComplete, data)
}

func (rc *RegistrationController) RegistrationClosed(c *fiber.Ctx) error {
	return c.Render(rc.Views.RegistrationClosed, fiber.Map{})
}

func (rc *RegistrationController) ActivationComplete(c *fiber.Ctx) error {
	return c.Render(rc.Views.ActivationComplete, fiber.Map{})
}

func (rc *RegistrationController) Activate(c *fiber.Ctx) error {
	workflow, ok := rc.Workflow.(*ActivationWorkflow)
	if !ok {
		return fiber.ErrNotFound
	}

	ctx := c.UserContext()

	var account *Account
	activate := NewActivateAccountHandler(rc.Store, workflow.Codec, rc.Logger).WithRepositoryManager(rc.Repos)
	err := activate.Execute(ctx, ActivateAccountMessage{
		Token:      c.Params("token"),
		MaxAgeDays: workflow.ExpirationDays,
		OnResponse: func(a *Account) {
			account = a
		},
	})
	if err != nil {
		if IsActivationError(err) {
			rc.Logger.Info("account activation rejected: %s", ActivationReason(err))
			return c.Status(fiber.StatusOK).Render(rc.Views.ActivationFailed, fiber.Map{
				"activation_error": MessageActivationFailed,
			})
		}
		return err
	}

	ctx = WithAccountContext(ctx, account)
	c.SetUserContext(ctx)

	if err := rc.Signals.Publish(ctx, Event{
		Name:    EventUserActivated,
		Account: account,
		Request: NewRequestInfo(c),
	}); err != nil {
		return err
	}

	return rc.redirect(c, rc.ActivationSuccessURL)
}

func (rc *RegistrationController) renderForm(c *fiber.Ctx, status int, payload *RegistrationPayload, errs FormErrors) error {
	return c.Status(status).Render(rc.Views.Register, fiber.Map{
		"errors":           errs,
		"record":           payload.Scrubbed(),
		"identifier_field": rc.AccountType.IdentifierField,
		"require_tos":      rc.Form.RequiresTOS(),
		"action":           c.OriginalURL(),
	})
}

func (rc *RegistrationController) redirect(c *fiber.Ctx, target RedirectTarget) error {
	location, err := target.Location(c)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not resolve redirect location")
	}
	return c.Redirect(location, fiber.StatusFound)
}
