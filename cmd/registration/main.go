package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	registration "github.com/goliatone/go-registration"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-registration/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("app"),
		glog.WithAddSource(false),
	)
	logger := lgr.GetLogger("app")

	cfg, err := config.Load()
	if err != nil {
		fatal(logger, "config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg)
	if err != nil {
		fatal(logger, "database: %v", err)
	}
	defer db.Close()

	if err := registration.CreateSchema(ctx, db); err != nil {
		fatal(logger, "schema: %v", err)
	}

	app, err := newApp(cfg, db, lgr)
	if err != nil {
		fatal(logger, "setup: %v", err)
	}

	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	logger.Info("listening on %s", cfg.ListenAddr)
	if err := app.Listen(cfg.ListenAddr); err != nil {
		fatal(logger, "listen: %v", err)
	}
}

func fatal(logger glog.Logger, format string, args ...any) {
	logger.Error(format, args...)
	os.Exit(1)
}

func openDB(cfg *config.Settings) (*bun.DB, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		sqldb, err := sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}
}

func newApp(cfg *config.Settings, db *bun.DB, lgr *glog.BaseLogger) (*fiber.App, error) {
	logger := lgr.GetLogger("registration")

	views, err := registration.NewViewEngine()
	if err != nil {
		return nil, err
	}

	mailer := newMailer(cfg, lgr.GetLogger("registration:mail"))

	var reporter registration.ErrorReporter = registration.LogReporter{Logger: lgr.GetLogger("registration:errors")}
	if len(cfg.Admins) > 0 {
		reporter = registration.MailReporter{
			Mailer: mailer,
			From:   cfg.DefaultFromEmail,
			Admins: cfg.Admins,
		}
	}

	app := fiber.New(fiber.Config{
		Views:        views,
		ErrorHandler: registration.NewErrorHandler(reporter, lgr.GetLogger("registration:errors")),
	})

	accountType, _ := registration.AccountTypeFromField(cfg.IdentifierField)

	formOpts := []registration.FormOption{registration.WithFormAccountType(accountType)}
	if cfg.CaseInsensitive {
		formOpts = append(formOpts, registration.WithCaseInsensitiveUsername())
	}
	if cfg.UniqueEmail {
		formOpts = append(formOpts, registration.WithUniqueEmail())
	}
	if cfg.TermsOfService {
		formOpts = append(formOpts, registration.WithTermsOfService())
	}

	workflow, err := newWorkflow(cfg, mailer, lgr.GetLogger("registration:tokens"))
	if err != nil {
		return nil, err
	}

	storeOpts := []registration.AccountsOption{}
	if cfg.UseHashedIDs {
		storeOpts = append(storeOpts, registration.WithHashedIDs())
	}

	repos := registration.NewRepositoryManager(db, storeOpts...)
	if err := repos.Validate(); err != nil {
		return nil, err
	}

	signalLogger := lgr.GetLogger("registration:signals")

	signals := registration.NewSignals()
	signals.Subscribe(registration.EventUserRegistered, registration.SubscriberFunc(
		func(_ context.Context, event registration.Event) error {
			signalLogger.Info("signal %s: %s from %s", event.Name, event.Account.Identifier, event.Request.IP)
			return nil
		},
	))
	signals.Subscribe(registration.EventUserActivated, registration.SubscriberFunc(
		func(_ context.Context, event registration.Event) error {
			signalLogger.Info("signal %s: %s", event.Name, event.Account.Identifier)
			return nil
		},
	))

	opts := []registration.RegistrationControllerOption{
		registration.WithRepositoryManager(repos),
		registration.WithWorkflow(workflow),
		registration.WithForm(registration.NewRegistrationForm(formOpts...)),
		registration.WithAccountType(accountType),
		registration.WithSignals(signals),
		registration.WithFeatureGate(registration.RegistrationOpen(cfg.RegistrationOpen)),
		registration.WithPasswordHasher(registration.NewBcryptHasher(cfg.BcryptCost)),
		registration.WithLogger(logger),
		registration.WithDebug(cfg.Debug),
	}
	if cfg.SuccessURL != "" {
		opts = append(opts, registration.WithSuccessURL(registration.RedirectURL(cfg.SuccessURL)))
	}
	if cfg.ActivationSuccessURL != "" {
		opts = append(opts, registration.WithActivationSuccessURL(registration.RedirectURL(cfg.ActivationSuccessURL)))
	}

	if _, err := registration.RegisterRoutes(app, opts...); err != nil {
		return nil, err
	}

	return app, nil
}

func newMailer(cfg *config.Settings, logger registration.Logger) registration.Mailer {
	if cfg.MailBackend == config.MailBackendSMTP {
		return registration.NewSMTPMailer(registration.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			TLS:      cfg.SMTPTLS,
			StartTLS: cfg.SMTPStartTLS,
		})
	}
	return registration.LogMailer{Logger: logger}
}

func newWorkflow(cfg *config.Settings, mailer registration.Mailer, logger registration.Logger) (registration.Workflow, error) {
	if cfg.Workflow == config.WorkflowOneStep {
		sessions := registration.NewJWTSessionStarter(
			[]byte(cfg.SecretKey),
			registration.WithSessionCookieName(cfg.SessionCookieName),
			registration.WithSessionTTL(cfg.SessionTTL),
		)
		return registration.NewOneStepWorkflow(sessions), nil
	}

	codec, err := registration.NewTokenCodec(
		[]byte(cfg.SecretKey),
		cfg.RegistrationSalt,
		registration.WithTokenLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return registration.NewActivationWorkflow(codec, mailer,
		registration.WithExpirationDays(cfg.AccountActivationDays),
		registration.WithSiteName(cfg.SiteName),
		registration.WithSiteURL(cfg.SiteURL),
		registration.WithFromAddress(cfg.DefaultFromEmail),
	)
}
