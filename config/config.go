package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	MailBackendSMTP = "smtp"
	MailBackendLog  = "log"

	WorkflowActivation = "activation"
	WorkflowOneStep    = "one_step"
)

// Settings holds everything the registration service reads from the
// environment
type Settings struct {
	RegistrationOpen      bool   `env:"REGISTRATION_OPEN" envDefault:"true"`
	AccountActivationDays int    `env:"ACCOUNT_ACTIVATION_DAYS" envDefault:"7"`
	SecretKey             string `env:"SECRET_KEY"`
	RegistrationSalt      string `env:"REGISTRATION_SALT" envDefault:"registration"`
	Workflow              string `env:"REGISTRATION_WORKFLOW" envDefault:"activation"`
	IdentifierField       string `env:"REGISTRATION_IDENTIFIER_FIELD" envDefault:"username"`
	CaseInsensitive       bool   `env:"REGISTRATION_CASE_INSENSITIVE" envDefault:"false"`
	UniqueEmail           bool   `env:"REGISTRATION_UNIQUE_EMAIL" envDefault:"false"`
	TermsOfService        bool   `env:"REGISTRATION_TERMS_OF_SERVICE" envDefault:"false"`
	SuccessURL            string `env:"REGISTRATION_SUCCESS_URL"`
	ActivationSuccessURL  string `env:"ACTIVATION_SUCCESS_URL"`
	SiteName              string `env:"SITE_NAME"`
	SiteURL               string `env:"SITE_URL"`

	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	Debug      bool   `env:"DEBUG" envDefault:"false"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseDSN    string `env:"DATABASE_DSN" envDefault:"file:registration.db?cache=shared"`

	MailBackend      string   `env:"MAIL_BACKEND" envDefault:"log"`
	DefaultFromEmail string   `env:"DEFAULT_FROM_EMAIL" envDefault:"webmaster@localhost"`
	Admins           []string `env:"ADMINS" envSeparator:","`
	SMTPHost         string   `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort         int      `env:"SMTP_PORT" envDefault:"25"`
	SMTPUsername     string   `env:"SMTP_USERNAME"`
	SMTPPassword     string   `env:"SMTP_PASSWORD"`
	SMTPStartTLS     bool     `env:"SMTP_STARTTLS" envDefault:"true"`
	SMTPTLS          bool     `env:"SMTP_TLS" envDefault:"false"`

	BcryptCost        int           `env:"BCRYPT_COST" envDefault:"12"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"registration_session"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	UseHashedIDs      bool          `env:"USE_HASHED_IDS" envDefault:"false"`
}

// Load parses the environment and validates the result
func Load() (*Settings, error) {
	cfg := &Settings{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateAdmins(value any) error {
	admins, _ := value.([]string)
	for _, admin := range admins {
		if err := is.Email.Validate(admin); err != nil {
			return fmt.Errorf("invalid admin address %q", admin)
		}
	}
	return nil
}

// Validate will run validation rules
func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.SecretKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&s.AccountActivationDays, validation.Required, validation.Min(1)),
		validation.Field(&s.Workflow, validation.Required, validation.In(WorkflowActivation, WorkflowOneStep)),
		validation.Field(&s.IdentifierField, validation.Required, validation.In("username", "email")),
		validation.Field(&s.SiteURL, is.URL),
		validation.Field(&s.DatabaseDriver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&s.DatabaseDSN, validation.Required),
		validation.Field(&s.MailBackend, validation.Required, validation.In(MailBackendSMTP, MailBackendLog)),
		validation.Field(&s.DefaultFromEmail, validation.Required),
		validation.Field(&s.Admins, validation.By(validateAdmins)),
		validation.Field(&s.SMTPPort, validation.Min(1), validation.Max(65535)),
		validation.Field(&s.BcryptCost, validation.Min(4), validation.Max(31)),
		validation.Field(&s.SessionTTL, validation.Min(time.Minute)),
	)
}
