package registration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

const (
	scrubbedValue           = "********************"
	sensitivePostParamsKey  = "registration.sensitive_post_parameters"
	allPostParamsSensitive  = "__ALL__"
	defaultInternalErrorMsg = "Internal Server Error"
)

// MarkSensitivePostParameters flags POST fields whose values must not reach
// error reports. Without names every POST value is treated as sensitive.
func MarkSensitivePostParameters(c *fiber.Ctx, names ...string) {
	if len(names) == 0 {
		names = []string{allPostParamsSensitive}
	}
	c.Locals(sensitivePostParamsKey, names)
}

func sensitivePostParameters(c *fiber.Ctx) []string {
	names, _ := c.Locals(sensitivePostParamsKey).([]string)
	return names
}

// ErrorReport describes an unexpected request failure
type ErrorReport struct {
	Time      time.Time
	Status    int
	ErrorType string
	Message   string
	TextCode  string
	Method    string
	Path      string
	Host      string
	GET       map[string][]string
	POST      map[string][]string
}

// NewErrorReport collects request details for err. Values of sensitive POST
// fields are replaced, field names are kept.
func NewErrorReport(c *fiber.Ctx, err error, status int) *ErrorReport {
	report := &ErrorReport{
		Time:      time.Now().UTC(),
		Status:    status,
		ErrorType: errorType(err),
		Message:   errorMessage(err),
		Method:    c.Method(),
		Path:      c.Path(),
		Host:      c.Hostname(),
		GET:       map[string][]string{},
		POST:      map[string][]string{},
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		report.TextCode = richErr.TextCode
	}

	c.Request().URI().QueryArgs().VisitAll(func(k, v []byte) {
		report.GET[string(k)] = append(report.GET[string(k)], string(v))
	})

	for k, values := range postValues(c) {
		report.POST[k] = values
	}

	scrubPost(report.POST, sensitivePostParameters(c))
	return report
}

func postValues(c *fiber.Ctx) map[string][]string {
	out := map[string][]string{}

	if form, err := c.MultipartForm(); err == nil && form != nil {
		for k, v := range form.Value {
			out[k] = append(out[k], v...)
		}
		return out
	}

	c.Request().PostArgs().VisitAll(func(k, v []byte) {
		out[string(k)] = append(out[string(k)], string(v))
	})
	return out
}

func scrubPost(post map[string][]string, sensitive []string) {
	if len(sensitive) == 0 {
		return
	}

	all := false
	names := map[string]struct{}{}
	for _, name := range sensitive {
		if name == allPostParamsSensitive {
			all = true
		}
		names[name] = struct{}{}
	}

	for k, values := range post {
		if _, ok := names[k]; !all && !ok {
			continue
		}
		scrubbed := make([]string, len(values))
		for i := range values {
			scrubbed[i] = scrubbedValue
		}
		post[k] = scrubbed
	}
}

func errorType(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return fmt.Sprintf("%v", richErr.Category)
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return "HTTPError"
	}
	return fmt.Sprintf("%T", err)
}

func errorMessage(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		if cause := errors.Unwrap(richErr); cause != nil {
			return richErr.Message + ": " + cause.Error()
		}
		return richErr.Message
	}
	return err.Error()
}

// String renders the report as plain text
func (r *ErrorReport) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s at %s\n", r.ErrorType, r.Path)
	fmt.Fprintf(&b, "%s\n\n", r.Message)
	fmt.Fprintf(&b, "Request Method: %s\n", r.Method)
	fmt.Fprintf(&b, "Request Host: %s\n", r.Host)
	fmt.Fprintf(&b, "Status: %d\n", r.Status)
	if r.TextCode != "" {
		fmt.Fprintf(&b, "Code: %s\n", r.TextCode)
	}
	fmt.Fprintf(&b, "Time: %s\n\n", r.Time.Format(time.RFC3339))

	writeParams(&b, "GET", r.GET)
	b.WriteString("\n")
	writeParams(&b, "POST", r.POST)

	return b.String()
}

func writeParams(b *strings.Builder, label string, params map[string][]string) {
	if len(params) == 0 {
		fmt.Fprintf(b, "No %s data\n", label)
		return
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(b, "%s:\n", label)
	for _, k := range keys {
		fmt.Fprintf(b, "  %s = %s\n", k, strings.Join(params[k], ", "))
	}
}

// NewErrorHandler returns a Fiber error handler. Failures with a 5xx status
// are turned into an ErrorReport and handed to reporter.
func NewErrorHandler(reporter ErrorReporter, logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}
	if reporter == nil {
		reporter = LogReporter{Logger: logger}
	}

	return func(c *fiber.Ctx, err error) error {
		status := statusFromError(err)

		if status < fiber.StatusInternalServerError {
			return c.Status(status).SendString(err.Error())
		}

		report := NewErrorReport(c, err, status)
		if rerr := reporter.Report(c.UserContext(), report); rerr != nil {
			logger.Error("failed to deliver error report: %v", rerr)
		}

		return c.Status(status).SendString(defaultInternalErrorMsg)
	}
}

func statusFromError(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}

	return fiber.StatusInternalServerError
}

// LogReporter writes error reports to a logger
type LogReporter struct {
	Logger Logger
}

// Report implements ErrorReporter
func (r LogReporter) Report(_ context.Context, report *ErrorReport) error {
	logger := r.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Error("%s", report.String())
	return nil
}

// MailReporter emails error reports to site admins
type MailReporter struct {
	Mailer        Mailer
	From          string
	Admins        []string
	SubjectPrefix string
}

// Report implements ErrorReporter
func (r MailReporter) Report(ctx context.Context, report *ErrorReport) error {
	if r.Mailer == nil || len(r.Admins) == 0 {
		return nil
	}

	prefix := r.SubjectPrefix
	if prefix == "" {
		prefix = "[registration] "
	}

	return r.Mailer.Send(ctx, &Message{
		From:    r.From,
		To:      r.Admins,
		Subject: fmt.Sprintf("%sERROR: %s at %s", prefix, report.ErrorType, report.Path),
		Body:    report.String(),
	})
}
