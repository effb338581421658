package registration

import (
	"bytes"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
)

const (
	ActivationEmailSubjectTemplate = "activation_email_subject"
	ActivationEmailBodyTemplate    = "activation_email_body"
)

// ActivationEmailData is the template context of the activation email
type ActivationEmailData struct {
	ActivationKey  string
	ActivationURL  string
	ExpirationDays int
	Site           string
	User           *Account
}

func (d ActivationEmailData) binding() fiber.Map {
	return fiber.Map{
		"activation_key":  d.ActivationKey,
		"activation_url":  d.ActivationURL,
		"expiration_days": d.ExpirationDays,
		"site":            d.Site,
		"user":            d.User.DisplayName(),
		"email":           d.User.Email,
	}
}

// ActivationEmail renders activation emails from subject and body templates
type ActivationEmail struct {
	engine          *django.Engine
	subjectTemplate string
	bodyTemplate    string
}

// NewActivationEmail uses engine to render the default template names. A nil
// engine loads the bundled templates.
func NewActivationEmail(engine *django.Engine) (*ActivationEmail, error) {
	if engine == nil {
		var err error
		if engine, err = NewMailEngine(); err != nil {
			return nil, err
		}
	}
	return &ActivationEmail{
		engine:          engine,
		subjectTemplate: ActivationEmailSubjectTemplate,
		bodyTemplate:    ActivationEmailBodyTemplate,
	}, nil
}

// Render returns the subject and body for data. The subject is forced onto a
// single line.
func (e *ActivationEmail) Render(data ActivationEmailData) (string, string, error) {
	bind := data.binding()

	var subject bytes.Buffer
	if err := e.engine.Render(&subject, e.subjectTemplate, bind); err != nil {
		return "", "", err
	}

	var body bytes.Buffer
	if err := e.engine.Render(&body, e.bodyTemplate, bind); err != nil {
		return "", "", err
	}

	return singleLine(subject.String()), body.String(), nil
}

func singleLine(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
