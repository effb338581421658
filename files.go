package registration

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
)

//go:embed templates
var templatesFS embed.FS

// GetTemplatesFS returns the default view and email templates
func GetTemplatesFS() embed.FS {
	return templatesFS
}

// NewViewEngine returns a django engine over the bundled HTML views
func NewViewEngine() (*django.Engine, error) {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, err
	}

	engine := django.NewFileSystem(http.FS(sub), ".html")
	if err := engine.Load(); err != nil {
		return nil, err
	}
	return engine, nil
}

// NewMailEngine returns a django engine over the bundled email templates
func NewMailEngine() (*django.Engine, error) {
	sub, err := fs.Sub(templatesFS, "templates/mail")
	if err != nil {
		return nil, err
	}

	engine := django.NewFileSystem(http.FS(sub), ".txt")
	if err := engine.Load(); err != nil {
		return nil, err
	}
	return engine, nil
}
