package registration_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-featuregate/gate"
	registration "github.com/goliatone/go-registration"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("test-secret-key-for-activation-tokens")

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(t time.Time) *fixedClock {
	return &fixedClock{now: t}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type recordingMailer struct {
	mu       sync.Mutex
	messages []*registration.Message
	err      error
}

func (m *recordingMailer) Send(_ context.Context, msg *registration.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *recordingMailer) Outbox() []*registration.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*registration.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

type recordingReporter struct {
	mu      sync.Mutex
	reports []*registration.ErrorReport
}

func (r *recordingReporter) Report(_ context.Context, report *registration.ErrorReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *recordingReporter) Reports() []*registration.ErrorReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*registration.ErrorReport{}, r.reports...)
}

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, registration.CreateSchema(context.Background(), db))

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func setupAccounts(t *testing.T, opts ...registration.AccountsOption) registration.Accounts {
	t.Helper()
	return registration.NewAccountsRepository(setupTestDB(t), opts...)
}

func validPayload() url.Values {
	return url.Values{
		"username":  {"alice"},
		"email":     {"alice@example.com"},
		"password1": {"swordfish"},
		"password2": {"swordfish"},
	}
}

func testHasher() registration.PasswordHasher {
	return registration.NewBcryptHasher(bcrypt.MinCost)
}

type testApp struct {
	app      *fiber.App
	store    registration.Accounts
	mailer   *recordingMailer
	reporter *recordingReporter
	signals  *registration.Signals
	sessions *registration.JWTSessionStarter
	codec    *registration.TokenCodec
	clock    *fixedClock
}

type testAppConfig struct {
	oneStep    bool
	closed     bool
	gate       gate.FeatureGate
	controller []registration.RegistrationControllerOption
	workflow   []registration.ActivationWorkflowOption
}

func newTestApp(t *testing.T, cfg testAppConfig) *testApp {
	t.Helper()

	views, err := registration.NewViewEngine()
	require.NoError(t, err)

	ta := &testApp{
		store:    setupAccounts(t),
		mailer:   &recordingMailer{},
		reporter: &recordingReporter{},
		signals:  registration.NewSignals(),
		clock:    newFixedClock(time.Now().UTC().Truncate(time.Second)),
	}

	ta.app = fiber.New(fiber.Config{
		Views:        views,
		ErrorHandler: registration.NewErrorHandler(ta.reporter, nopLogger{}),
	})

	var workflow registration.Workflow
	if cfg.oneStep {
		ta.sessions = registration.NewJWTSessionStarter(testSecret)
		workflow = registration.NewOneStepWorkflow(ta.sessions)
	} else {
		ta.codec, err = registration.NewTokenCodec(testSecret, registration.DefaultSalt,
			registration.WithTokenClock(ta.clock.Now),
			registration.WithTokenLogger(nopLogger{}),
		)
		require.NoError(t, err)

		wopts := append([]registration.ActivationWorkflowOption{
			registration.WithSiteName("example.com"),
		}, cfg.workflow...)
		workflow, err = registration.NewActivationWorkflow(ta.codec, ta.mailer, wopts...)
		require.NoError(t, err)
	}

	featureGate := cfg.gate
	if featureGate == nil {
		featureGate = registration.RegistrationOpen(!cfg.closed)
	}

	opts := append([]registration.RegistrationControllerOption{
		registration.WithStore(ta.store),
		registration.WithWorkflow(workflow),
		registration.WithSignals(ta.signals),
		registration.WithFeatureGate(featureGate),
		registration.WithPasswordHasher(testHasher()),
		registration.WithLogger(nopLogger{}),
	}, cfg.controller...)

	_, err = registration.RegisterRoutes(ta.app, opts...)
	require.NoError(t, err)

	return ta
}

func (ta *testApp) get(t *testing.T, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (ta *testApp) post(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func countAccounts(t *testing.T, store registration.AccountStore, identifier string) int {
	t.Helper()
	_, err := store.FindByIdentifier(context.Background(), identifier)
	if err != nil {
		return 0
	}
	return 1
}

type eventRecorder struct {
	mu     sync.Mutex
	events []registration.Event
}

func (r *eventRecorder) Receive(_ context.Context, event registration.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) Events() []registration.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]registration.Event{}, r.events...)
}
