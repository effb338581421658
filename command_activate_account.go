package registration

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type ActivateAccountMessage struct {
	Token      string
	MaxAgeDays int
	OnResponse func(*Account)
}

func (e ActivateAccountMessage) Type() string { return "account.activate" }

// ActivateAccountHandler verifies an activation token and flips the account
// active flag. Rejections come back as *ActivationError.
type ActivateAccountHandler struct {
	store  AccountStore
	repos  RepositoryManager
	codec  *TokenCodec
	logger Logger
}

func NewActivateAccountHandler(store AccountStore, codec *TokenCodec, logger Logger) *ActivateAccountHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &ActivateAccountHandler{store: store, codec: codec, logger: logger}
}

// WithRepositoryManager makes the handler load and update the account inside
// a transaction on repos
func (h *ActivateAccountHandler) WithRepositoryManager(repos RepositoryManager) *ActivateAccountHandler {
	h.repos = repos
	if repos != nil {
		h.store = repos.Accounts()
	}
	return h
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountHandler) execute(ctx context.Context, event ActivateAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	identifier, err := h.codec.Verify(event.Token, event.MaxAgeDays)
	if err != nil {
		return err
	}

	var activated *Account
	if h.repos == nil {
		activated, err = activateAccount(ctx, identifier, h.store.FindByIdentifier, h.store.MarkActive)
	} else {
		err = h.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			accounts := h.repos.Accounts()
			var txErr error
			activated, txErr = activateAccount(ctx, identifier,
				func(ctx context.Context, identifier string) (*Account, error) {
					return accounts.FindByIdentifierTx(ctx, tx, identifier)
				},
				func(ctx context.Context, account *Account) (*Account, error) {
					return accounts.MarkActiveTx(ctx, tx, account)
				},
			)
			return txErr
		})
	}
	if err != nil {
		return err
	}

	h.logger.Info("account activated: %s", activated.Identifier)

	if event.OnResponse != nil {
		event.OnResponse(activated)
	}

	return nil
}

func activateAccount(
	ctx context.Context,
	identifier string,
	find func(context.Context, string) (*Account, error),
	markActive func(context.Context, *Account) (*Account, error),
) (*Account, error) {
	account, err := find(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return nil, &ActivationError{Reason: ActivationBadIdentifier, Err: err}
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not load account for activation")
	}

	if account.IsActive {
		return nil, &ActivationError{Reason: ActivationAlreadyActivated}
	}

	activated, err := markActive(ctx, account)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not activate account")
	}

	return activated, nil
}
