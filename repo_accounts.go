package registration

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

const pgUniqueViolation = "23505"

// Accounts is the bun backed AccountStore
type Accounts interface {
	repository.Repository[*Account]
	AccountStore

	CreateAccountTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	FindByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*Account, error)
	MarkActiveTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
}

type accounts struct {
	repository.Repository[*Account]
	db        *bun.DB
	hashedIDs bool
	now       func() time.Time
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ AccountStore                    = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

type AccountsOption func(*accounts)

// WithHashedIDs derives account ids from the email address instead of
// generating random ones
func WithHashedIDs() AccountsOption {
	return func(a *accounts) {
		a.hashedIDs = true
	}
}

// WithAccountsClock overrides the clock used for timestamps
func WithAccountsClock(now func() time.Time) AccountsOption {
	return func(a *accounts) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAccountsRepository returns an AccountStore on db
func NewAccountsRepository(db *bun.DB, opts ...AccountsOption) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "identifier"
		},
	})

	store := &accounts{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	return store
}

// CreateSchema creates the accounts table and its lookup indexes
func CreateSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().
		Model((*Account)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create accounts table")
	}

	indexes := map[string]string{
		"accounts_username_key_idx": "username_key",
		"accounts_email_key_idx":    "email_key",
	}
	for name, column := range indexes {
		if _, err := db.NewCreateIndex().
			Model((*Account)(nil)).
			Index(name).
			IfNotExists().
			Column(column).
			Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create accounts index").
				WithMetadata(map[string]any{"index": name})
		}
	}

	return nil
}

func (a *accounts) CreateAccount(ctx context.Context, account *Account) (*Account, error) {
	return a.CreateAccountTx(ctx, a.db, account)
}

func (a *accounts) CreateAccountTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	if account == nil || strings.TrimSpace(account.Identifier) == "" {
		return nil, goerrors.New("account identifier is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	a.prepareAccountDefaults(account)

	created, err := a.Repository.CreateTx(ctx, tx, account)
	if err != nil {
		if a.isConflict(ctx, tx, account, err) {
			return nil, ErrAccountConflict
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create account")
	}

	return created, nil
}

// isConflict matches the driver error first and falls back to a lookup,
// since the repository layer may wrap the driver error
func (a *accounts) isConflict(ctx context.Context, tx bun.IDB, account *Account, err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}

	if isUniqueViolation(err) {
		return true
	}

	exists, lookupErr := tx.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.identifier = ?", account.Identifier).
		Exists(ctx)
	return lookupErr == nil && exists
}

func (a *accounts) FindByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	return a.FindByIdentifierTx(ctx, a.db, identifier)
}

func (a *accounts) FindByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.identifier = ?", identifier).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"identifier": identifier,
				})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not find account")
	}

	return record, nil
}

func (a *accounts) UsernameExists(ctx context.Context, username string, foldCase bool) (bool, error) {
	q := a.db.NewSelect().Model((*Account)(nil))
	if foldCase {
		q = q.Where("?TableAlias.username_key = ?", FoldKey(username))
	} else {
		q = q.Where("?TableAlias.username = ?", username)
	}
	return q.Exists(ctx)
}

func (a *accounts) EmailExists(ctx context.Context, email string) (bool, error) {
	return a.db.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.email_key = ?", FoldKey(email)).
		Exists(ctx)
}

func (a *accounts) MarkActive(ctx context.Context, account *Account) (*Account, error) {
	return a.MarkActiveTx(ctx, a.db, account)
}

func (a *accounts) MarkActiveTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	if account == nil || account.ID == uuid.Nil {
		return nil, goerrors.New("account id is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	activatedAt := a.now().UTC()
	account.IsActive = true
	account.ActivatedAt = &activatedAt

	res, err := tx.NewUpdate().
		Model(account).
		Column("is_active", "activated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not activate account")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": account.ID.String(),
			})
	}

	return account, nil
}

func (a *accounts) prepareAccountDefaults(record *Account) {
	if record.ID == uuid.Nil && a.hashedIDs && record.Email != "" {
		if id, err := hashid.NewUUID(record.Email); err == nil {
			record.ID = id
		}
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.DateJoined == nil {
		joined := a.now().UTC()
		record.DateJoined = &joined
	}

	if record.EmailKey == "" {
		record.EmailKey = FoldKey(record.Email)
	}

	if record.Username != "" && record.UsernameKey == "" {
		record.UsernameKey = FoldKey(record.Username)
	}
}
