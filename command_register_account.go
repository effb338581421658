package registration

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	Form       *RegistrationForm
	Payload    *RegistrationPayload
	Active     bool
	OnResponse func(*Account)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// RegisterAccountHandler hashes the password and stores a new account
type RegisterAccountHandler struct {
	store  AccountStore
	repos  RepositoryManager
	hasher PasswordHasher
}

func NewRegisterAccountHandler(store AccountStore, hasher PasswordHasher) *RegisterAccountHandler {
	return &RegisterAccountHandler{store: store, hasher: hasher}
}

// WithRepositoryManager makes the handler hash and insert inside a
// transaction on repos
func (h *RegisterAccountHandler) WithRepositoryManager(repos RepositoryManager) *RegisterAccountHandler {
	h.repos = repos
	if repos != nil {
		h.store = repos.Accounts()
	}
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	if event.Form == nil || event.Payload == nil {
		return goerrors.New("registration form and payload are required", goerrors.CategoryBadInput)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var created *Account
	if h.repos == nil {
		account, err := h.newAccount(event)
		if err != nil {
			return err
		}
		created, err = h.store.CreateAccount(ctx, account)
		if err != nil {
			return createError(err)
		}
	} else {
		err := h.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			account, err := h.newAccount(event)
			if err != nil {
				return err
			}
			created, err = h.repos.Accounts().CreateAccountTx(ctx, tx, account)
			if err != nil {
				return createError(err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(created)
	}

	return nil
}

func (h *RegisterAccountHandler) newAccount(event RegisterAccountMessage) (*Account, error) {
	hash, err := h.hasher.HashPassword(event.Payload.Password1)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	account := event.Form.NewAccount(event.Payload)
	account.PasswordHash = hash
	account.IsActive = event.Active
	return account, nil
}

func createError(err error) error {
	if IsConflictError(err) {
		return err
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create account")
}
