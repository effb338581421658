package registration

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// RedirectTarget is a success location: a literal URL, a named route, or a
// function. Named routes and functions are resolved per request.
type RedirectTarget struct {
	URL     string
	Route   string
	Params  fiber.Map
	Resolve func(c *fiber.Ctx) (string, error)
}

// RedirectURL targets a literal location
func RedirectURL(url string) RedirectTarget {
	return RedirectTarget{URL: url}
}

// RedirectRoute targets a named Fiber route
func RedirectRoute(name string, params fiber.Map) RedirectTarget {
	return RedirectTarget{Route: name, Params: params}
}

// RedirectFunc resolves the location with fn on every request
func RedirectFunc(fn func(c *fiber.Ctx) (string, error)) RedirectTarget {
	return RedirectTarget{Resolve: fn}
}

// IsZero reports whether no location was configured
func (r RedirectTarget) IsZero() bool {
	return r.URL == "" && r.Route == "" && r.Resolve == nil
}

// Location resolves the target for c
func (r RedirectTarget) Location(c *fiber.Ctx) (string, error) {
	switch {
	case r.Resolve != nil:
		return r.Resolve(c)
	case r.Route != "":
		params := r.Params
		if params == nil {
			params = fiber.Map{}
		}
		location, err := c.GetRouteURL(r.Route, params)
		if err != nil {
			return "", err
		}
		if location == "" {
			return "", errors.New("redirect route not found: " + r.Route)
		}
		return location, nil
	case r.URL != "":
		return r.URL, nil
	}
	return "", errors.New("redirect target is not configured")
}

func (r RedirectTarget) orDefault(def RedirectTarget) RedirectTarget {
	if r.IsZero() {
		return def
	}
	return r
}
