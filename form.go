package registration

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

const (
	FieldUsername  = "username"
	FieldEmail     = "email"
	FieldPassword1 = "password1"
	FieldPassword2 = "password2"
	FieldTOS       = "tos"
)

const (
	defaultMinPasswordLength = 8
	maxPasswordLength        = 128
	maxUsernameLength        = 150
	maxEmailLength           = 254
)

// RegistrationPayload is the submitted registration form
type RegistrationPayload struct {
	Username  string `form:"username" json:"username"`
	Email     string `form:"email" json:"email"`
	Password1 string `form:"password1" json:"password1"`
	Password2 string `form:"password2" json:"password2"`
	TOS       string `form:"tos" json:"tos"`
}

// Normalize trims identifiers and lowercases the email domain
func (p *RegistrationPayload) Normalize() {
	p.Username = strings.TrimSpace(p.Username)
	p.Email = normalizeEmail(p.Email)
}

// AcceptedTerms reports whether the terms of service box was ticked
func (p RegistrationPayload) AcceptedTerms() bool {
	switch strings.ToLower(strings.TrimSpace(p.TOS)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// Scrubbed returns a copy safe to log
func (p RegistrationPayload) Scrubbed() RegistrationPayload {
	if p.Password1 != "" {
		p.Password1 = scrubbedValue
	}
	if p.Password2 != "" {
		p.Password2 = scrubbedValue
	}
	return p
}

func normalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// FormErrors maps field names to a single error message
type FormErrors map[string]string

// HasError reports whether field failed validation
func (e FormErrors) HasError(field string) bool {
	_, ok := e[field]
	return ok
}

func (e FormErrors) add(field, message string) {
	if _, ok := e[field]; !ok {
		e[field] = message
	}
}

// RegistrationForm validates registration payloads
type RegistrationForm struct {
	accountType       AccountType
	reservedNames     []string
	caseInsensitive   bool
	uniqueEmail       bool
	requireTOS        bool
	minPasswordLength int
}

type FormOption func(*RegistrationForm)

// WithFormAccountType sets the account type the form creates
func WithFormAccountType(t AccountType) FormOption {
	return func(f *RegistrationForm) {
		f.accountType = t
	}
}

// WithReservedNames replaces the reserved names list
func WithReservedNames(names ...string) FormOption {
	return func(f *RegistrationForm) {
		f.reservedNames = append([]string{}, names...)
	}
}

// WithCaseInsensitiveUsername rejects usernames that only differ in case
// from an existing one
func WithCaseInsensitiveUsername() FormOption {
	return func(f *RegistrationForm) {
		f.caseInsensitive = true
	}
}

// WithUniqueEmail rejects email addresses already in use
func WithUniqueEmail() FormOption {
	return func(f *RegistrationForm) {
		f.uniqueEmail = true
	}
}

// WithTermsOfService requires the tos field
func WithTermsOfService() FormOption {
	return func(f *RegistrationForm) {
		f.requireTOS = true
	}
}

// WithMinPasswordLength sets the minimum password length
func WithMinPasswordLength(n int) FormOption {
	return func(f *RegistrationForm) {
		if n > 0 {
			f.minPasswordLength = n
		}
	}
}

// NewRegistrationForm returns a username form with the default reserved
// names unless configured otherwise
func NewRegistrationForm(opts ...FormOption) *RegistrationForm {
	f := &RegistrationForm{
		accountType:       UsernameAccount,
		reservedNames:     DefaultReservedNames,
		minPasswordLength: defaultMinPasswordLength,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// AccountType is the account type this form creates
func (f *RegistrationForm) AccountType() AccountType {
	return f.accountType
}

// RequiresTOS reports whether the form renders the terms checkbox
func (f *RegistrationForm) RequiresTOS() bool {
	return f.requireTOS
}

func (f *RegistrationForm) identifiedByEmail() bool {
	return f.accountType.IdentifierField == EmailAccount.IdentifierField
}

// Rules runs the static field rules, without store lookups
func (f *RegistrationForm) Rules(p *RegistrationPayload) error {
	usernameRules := []validation.Rule{}
	if !f.identifiedByEmail() {
		usernameRules = append(usernameRules,
			validation.Required.Error(MessageRequired),
			validation.Length(1, maxUsernameLength),
			validation.By(ValidateReservedName(f.reservedNames)),
			validation.By(ValidateConfusable),
		)
	}

	return validation.ValidateStruct(p,
		validation.Field(&p.Username, usernameRules...),
		validation.Field(
			&p.Email,
			validation.Required.Error(MessageRequired),
			validation.Length(3, maxEmailLength),
			validation.By(ValidateConfusableEmail),
			validation.By(ValidateHTML5Email),
		),
		validation.Field(
			&p.Password1,
			validation.Required.Error(MessageRequired),
			validation.Length(f.minPasswordLength, maxPasswordLength),
		),
		validation.Field(
			&p.Password2,
			validation.Required.Error(MessageRequired),
			validation.By(ValidateStringEquals(p.Password1, MessagePasswordMismatch)),
		),
	)
}

// Validate normalizes p, applies the field rules and then checks uniqueness
// against store. Field failures come back as FormErrors; store failures as
// error.
func (f *RegistrationForm) Validate(ctx context.Context, store AccountStore, p *RegistrationPayload) (FormErrors, error) {
	p.Normalize()

	formErrs := FormErrors(FormatValidationErrorToMap(f.Rules(p)))
	if f.requireTOS && !p.AcceptedTerms() {
		formErrs.add(FieldTOS, MessageTOSRequired)
	}

	if store == nil {
		return formErrs, nil
	}

	if !f.identifiedByEmail() && !formErrs.HasError(FieldUsername) {
		exists, err := store.UsernameExists(ctx, p.Username, f.caseInsensitive)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check username availability")
		}
		if exists {
			formErrs.add(FieldUsername, MessageDuplicateUsername)
		}
	}

	if (f.uniqueEmail || f.identifiedByEmail()) && !formErrs.HasError(FieldEmail) {
		exists, err := store.EmailExists(ctx, p.Email)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check email availability")
		}
		if exists {
			formErrs.add(FieldEmail, MessageDuplicateEmail)
		}
	}

	return formErrs, nil
}

// NewAccount builds an unsaved account from a validated payload
func (f *RegistrationForm) NewAccount(p *RegistrationPayload) *Account {
	account := &Account{
		Username: p.Username,
		Email:    p.Email,
		EmailKey: FoldKey(p.Email),
	}
	if f.identifiedByEmail() {
		account.Username = ""
	}
	if account.Username != "" {
		account.UsernameKey = FoldKey(account.Username)
	}
	account.Identifier = account.IdentifierFor(f.accountType)
	return account
}
