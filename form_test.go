package registration_test

import (
	"context"
	"errors"
	"testing"

	registration "github.com/goliatone/go-registration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) CreateAccount(ctx context.Context, account *registration.Account) (*registration.Account, error) {
	args := m.Called(ctx, account)
	if acc, ok := args.Get(0).(*registration.Account); ok {
		return acc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountStore) FindByIdentifier(ctx context.Context, identifier string) (*registration.Account, error) {
	args := m.Called(ctx, identifier)
	if acc, ok := args.Get(0).(*registration.Account); ok {
		return acc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountStore) UsernameExists(ctx context.Context, username string, foldCase bool) (bool, error) {
	args := m.Called(ctx, username, foldCase)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountStore) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountStore) MarkActive(ctx context.Context, account *registration.Account) (*registration.Account, error) {
	args := m.Called(ctx, account)
	if acc, ok := args.Get(0).(*registration.Account); ok {
		return acc, args.Error(1)
	}
	return nil, args.Error(1)
}

func payload(overrides func(p *registration.RegistrationPayload)) *registration.RegistrationPayload {
	p := &registration.RegistrationPayload{
		Username:  "alice",
		Email:     "alice@example.com",
		Password1: "swordfish",
		Password2: "swordfish",
	}
	if overrides != nil {
		overrides(p)
	}
	return p
}

func seedAccount(t *testing.T, store registration.AccountStore, username, email string) *registration.Account {
	t.Helper()
	form := registration.NewRegistrationForm()
	account := form.NewAccount(payload(func(p *registration.RegistrationPayload) {
		p.Username = username
		p.Email = email
	}))
	account.PasswordHash = "hash"
	created, err := store.CreateAccount(context.Background(), account)
	require.NoError(t, err)
	return created
}

func TestRegistrationFormValidData(t *testing.T) {
	store := setupAccounts(t)
	form := registration.NewRegistrationForm()

	errs, err := form.Validate(context.Background(), store, payload(nil))
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestRegistrationFormFieldErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *registration.RegistrationPayload)
		field   string
		message string
	}{
		{
			name:    "Password mismatch",
			mutate:  func(p *registration.RegistrationPayload) { p.Password2 = "swordfishes" },
			field:   registration.FieldPassword2,
			message: registration.MessagePasswordMismatch,
		},
		{
			name:    "Missing username",
			mutate:  func(p *registration.RegistrationPayload) { p.Username = "  " },
			field:   registration.FieldUsername,
			message: registration.MessageRequired,
		},
		{
			name:    "Missing email",
			mutate:  func(p *registration.RegistrationPayload) { p.Email = "" },
			field:   registration.FieldEmail,
			message: registration.MessageRequired,
		},
		{
			name:    "Invalid email",
			mutate:  func(p *registration.RegistrationPayload) { p.Email = "alice@" },
			field:   registration.FieldEmail,
			message: registration.MessageInvalidEmail,
		},
		{
			name:    "Reserved username",
			mutate:  func(p *registration.RegistrationPayload) { p.Username = "postmaster" },
			field:   registration.FieldUsername,
			message: registration.MessageReservedName,
		},
		{
			name:    "Confusable username",
			mutate:  func(p *registration.RegistrationPayload) { p.Username = "gооgle" },
			field:   registration.FieldUsername,
			message: registration.MessageConfusable,
		},
		{
			name:    "Confusable email domain",
			mutate:  func(p *registration.RegistrationPayload) { p.Email = "paypal@exаmple.com" },
			field:   registration.FieldEmail,
			message: registration.MessageConfusableEmail,
		},
		{
			name:   "Short password",
			mutate: func(p *registration.RegistrationPayload) { p.Password1, p.Password2 = "short", "short" },
			field:  registration.FieldPassword1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupAccounts(t)
			form := registration.NewRegistrationForm()

			errs, err := form.Validate(context.Background(), store, payload(tt.mutate))
			require.NoError(t, err)
			require.True(t, errs.HasError(tt.field), "errors: %v", errs)
			if tt.message != "" {
				assert.Equal(t, tt.message, errs[tt.field])
			}
		})
	}
}

func TestRegistrationFormCustomReservedNames(t *testing.T) {
	form := registration.NewRegistrationForm(registration.WithReservedNames("alice"))

	errs, err := form.Validate(context.Background(), nil, payload(nil))
	require.NoError(t, err)
	assert.Equal(t, registration.MessageReservedName, errs[registration.FieldUsername])

	errs, err = form.Validate(context.Background(), nil, payload(func(p *registration.RegistrationPayload) {
		p.Username = "admin"
	}))
	require.NoError(t, err)
	assert.False(t, errs.HasError(registration.FieldUsername))
}

func TestRegistrationFormDuplicateUsername(t *testing.T) {
	store := setupAccounts(t)
	seedAccount(t, store, "alice", "someone@example.com")

	form := registration.NewRegistrationForm()
	errs, err := form.Validate(context.Background(), store, payload(nil))
	require.NoError(t, err)
	assert.Equal(t, registration.MessageDuplicateUsername, errs[registration.FieldUsername])

	// case sensitive by default
	errs, err = form.Validate(context.Background(), store, payload(func(p *registration.RegistrationPayload) {
		p.Username = "ALICE"
	}))
	require.NoError(t, err)
	assert.False(t, errs.HasError(registration.FieldUsername))
}

func TestRegistrationFormCaseInsensitiveUsername(t *testing.T) {
	pairs := []struct {
		existing string
		attempt  string
	}{
		{"alice", "ALICE"},
		{"Alice", "aLiCe"},
		{"STRASSBURGER", "straßburger"},
	}

	for _, pair := range pairs {
		t.Run(pair.existing+"/"+pair.attempt, func(t *testing.T) {
			store := setupAccounts(t)
			seedAccount(t, store, pair.existing, "existing@example.com")

			form := registration.NewRegistrationForm(registration.WithCaseInsensitiveUsername())
			errs, err := form.Validate(context.Background(), store, payload(func(p *registration.RegistrationPayload) {
				p.Username = pair.attempt
			}))
			require.NoError(t, err)
			assert.Equal(t, registration.MessageDuplicateUsername, errs[registration.FieldUsername])
		})
	}
}

func TestRegistrationFormTermsOfService(t *testing.T) {
	form := registration.NewRegistrationForm(registration.WithTermsOfService())
	assert.True(t, form.RequiresTOS())

	errs, err := form.Validate(context.Background(), nil, payload(nil))
	require.NoError(t, err)
	assert.Equal(t, registration.MessageTOSRequired, errs[registration.FieldTOS])

	errs, err = form.Validate(context.Background(), nil, payload(func(p *registration.RegistrationPayload) {
		p.TOS = "on"
	}))
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestRegistrationFormUniqueEmail(t *testing.T) {
	store := setupAccounts(t)
	seedAccount(t, store, "alice2", "alice@example.com")

	plain := registration.NewRegistrationForm()
	errs, err := plain.Validate(context.Background(), store, payload(nil))
	require.NoError(t, err)
	assert.False(t, errs.HasError(registration.FieldEmail))

	unique := registration.NewRegistrationForm(registration.WithUniqueEmail())
	errs, err = unique.Validate(context.Background(), store, payload(nil))
	require.NoError(t, err)
	assert.Equal(t, registration.MessageDuplicateEmail, errs[registration.FieldEmail])

	errs, err = unique.Validate(context.Background(), store, payload(func(p *registration.RegistrationPayload) {
		p.Email = "bob@example.com"
	}))
	require.NoError(t, err)
	assert.Empty(t, errs)

	// domains compare case-insensitively
	errs, err = unique.Validate(context.Background(), store, payload(func(p *registration.RegistrationPayload) {
		p.Email = "alice@EXAMPLE.com"
	}))
	require.NoError(t, err)
	assert.Equal(t, registration.MessageDuplicateEmail, errs[registration.FieldEmail])
}

func TestRegistrationFormEmailAccount(t *testing.T) {
	store := setupAccounts(t)
	form := registration.NewRegistrationForm(registration.WithFormAccountType(registration.EmailAccount))
	assert.Equal(t, registration.EmailAccount, form.AccountType())

	p := payload(func(p *registration.RegistrationPayload) { p.Username = "" })
	errs, err := form.Validate(context.Background(), store, p)
	require.NoError(t, err)
	assert.Empty(t, errs)

	account := form.NewAccount(p)
	assert.Equal(t, "alice@example.com", account.Identifier)
	assert.Empty(t, account.Username)

	account.PasswordHash = "hash"
	_, err = store.CreateAccount(context.Background(), account)
	require.NoError(t, err)

	errs, err = form.Validate(context.Background(), store, payload(func(p *registration.RegistrationPayload) { p.Username = "" }))
	require.NoError(t, err)
	assert.Equal(t, registration.MessageDuplicateEmail, errs[registration.FieldEmail])
}

func TestRegistrationFormNormalizesPayload(t *testing.T) {
	form := registration.NewRegistrationForm()
	p := payload(func(p *registration.RegistrationPayload) {
		p.Username = "  alice "
		p.Email = " Alice@Example.COM "
	})

	errs, err := form.Validate(context.Background(), nil, p)
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "Alice@example.com", p.Email)

	account := form.NewAccount(p)
	assert.Equal(t, "alice", account.Identifier)
	assert.Equal(t, registration.FoldKey("alice"), account.UsernameKey)
	assert.Equal(t, registration.FoldKey("alice@example.com"), account.EmailKey)
}

func TestRegistrationFormStoreFailure(t *testing.T) {
	store := &MockAccountStore{}
	store.On("UsernameExists", mock.Anything, "alice", false).
		Return(false, errors.New("connection refused")).Once()

	form := registration.NewRegistrationForm()
	errs, err := form.Validate(context.Background(), store, payload(nil))
	require.Error(t, err)
	assert.Nil(t, errs)
	assert.Contains(t, err.Error(), "username")

	store.AssertExpectations(t)
}

func TestRegistrationFormSkipsLookupForInvalidFields(t *testing.T) {
	store := &MockAccountStore{}

	form := registration.NewRegistrationForm(registration.WithUniqueEmail())
	errs, err := form.Validate(context.Background(), store, payload(func(p *registration.RegistrationPayload) {
		p.Username = "admin"
		p.Email = "nope"
	}))
	require.NoError(t, err)
	assert.True(t, errs.HasError(registration.FieldUsername))
	assert.True(t, errs.HasError(registration.FieldEmail))

	store.AssertNotCalled(t, "UsernameExists", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "EmailExists", mock.Anything, mock.Anything)
}

func TestRegistrationPayloadHelpers(t *testing.T) {
	p := payload(func(p *registration.RegistrationPayload) { p.TOS = "True" })
	assert.True(t, p.AcceptedTerms())

	p.TOS = "off"
	assert.False(t, p.AcceptedTerms())

	scrubbed := p.Scrubbed()
	assert.NotEqual(t, "swordfish", scrubbed.Password1)
	assert.NotEqual(t, "swordfish", scrubbed.Password2)
	assert.Equal(t, "swordfish", p.Password1)
	assert.Equal(t, "alice", scrubbed.Username)
}
