package registration

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountType describes which account field identifies an account
type AccountType struct {
	Name            string
	IdentifierField string
}

var (
	// UsernameAccount accounts are identified by username
	UsernameAccount = AccountType{Name: "username", IdentifierField: "username"}
	// EmailAccount accounts are identified by email address
	EmailAccount = AccountType{Name: "email", IdentifierField: "email"}
)

// AccountTypeFromField resolves the identifying field name used in
// configuration
func AccountTypeFromField(field string) (AccountType, bool) {
	switch field {
	case UsernameAccount.IdentifierField:
		return UsernameAccount, true
	case EmailAccount.IdentifierField:
		return EmailAccount, true
	}
	return AccountType{}, false
}

func (t AccountType) String() string {
	return t.Name
}

// Account is the account model
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Identifier    string     `bun:"identifier,notnull,unique" json:"identifier"`
	Username      string     `bun:"username,nullzero,unique" json:"username,omitempty"`
	UsernameKey   string     `bun:"username_key,nullzero" json:"-"`
	Email         string     `bun:"email,notnull" json:"email"`
	EmailKey      string     `bun:"email_key,notnull" json:"-"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	IsActive      bool       `bun:"is_active,notnull" json:"is_active"`
	DateJoined    *time.Time `bun:"date_joined,nullzero" json:"date_joined,omitempty"`
	ActivatedAt   *time.Time `bun:"activated_at,nullzero" json:"activated_at,omitempty"`
}

// IdentifierFor returns the value of the field that identifies the account
func (a *Account) IdentifierFor(t AccountType) string {
	if a == nil {
		return ""
	}
	if t.IdentifierField == EmailAccount.IdentifierField {
		return a.Email
	}
	return a.Username
}

// DisplayName is used when addressing the account owner
func (a *Account) DisplayName() string {
	if a == nil {
		return ""
	}
	if a.Username != "" {
		return a.Username
	}
	return a.Email
}
