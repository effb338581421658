package registration

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Validation messages shown next to form fields
const (
	MessageConfusable        = "This name cannot be registered. Please choose a different name."
	MessageConfusableEmail   = "This email address cannot be registered. Please supply a different email address."
	MessageDuplicateEmail    = "This email address is already in use. Please supply a different email address."
	MessageDuplicateUsername = "A user with that username already exists."
	MessageReservedName      = "This name is reserved and cannot be registered."
	MessageTOSRequired       = "You must agree to the terms to register"
	MessageInvalidEmail      = "Enter a valid email address."
	MessagePasswordMismatch  = "The two password fields didn't match."
	MessageRequired          = "This field is required."
)

var (
	specialHostnames = []string{
		"autoconfig", "autodiscover", "broadcasthost", "isatap", "localdomain",
		"localhost", "wpad",
	}
	protocolHostnames = []string{
		"ftp", "imap", "mail", "news", "pop", "pop3", "smtp", "usenet", "uucp",
		"webmail", "www",
	}
	caAddresses = []string{
		"admin", "administrator", "hostmaster", "info", "is", "it", "mis",
		"postmaster", "root", "ssladmin", "ssladministrator", "sslwebmaster",
		"sysadmin", "webmaster",
	}
	rfc2142Addresses = []string{
		"abuse", "marketing", "noc", "sales", "security", "support",
	}
	noReplyAddresses = []string{
		"mailer-daemon", "nobody", "noreply", "no-reply",
	}
	sensitiveFilenames = []string{
		"clientaccesspolicy.xml", "crossdomain.xml", "favicon.ico", "humans.txt",
		"keybase.txt", "robots.txt", ".htaccess", ".htpasswd",
	}
	otherSensitiveNames = []string{
		"account", "accounts", "auth", "authorize", "blog", "buy", "cart",
		"clients", "contact", "contactus", "contact-us", "copyright", "dashboard",
		"doc", "docs", "download", "downloads", "enquiry", "faq", "help",
		"inquiry", "license", "login", "logout", "me", "myaccount", "oauth",
		"pay", "payment", "payments", "plans", "portfolio", "preferences",
		"pricing", "privacy", "profile", "register", "secure", "settings",
		"signin", "signup", "ssl", "status", "store", "subscribe", "terms",
		"tos", "user", "users", "weblog", "work",
	}
)

// DefaultReservedNames are names that could be mistaken for site owned
// addresses or paths
var DefaultReservedNames = concatNames(
	specialHostnames,
	protocolHostnames,
	caAddresses,
	rfc2142Addresses,
	noReplyAddresses,
	sensitiveFilenames,
	otherSensitiveNames,
)

// html5EmailPattern is the WHATWG valid email address production
var html5EmailPattern = regexp.MustCompile(
	`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`,
)

func concatNames(groups ...[]string) []string {
	out := []string{}
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string, message string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New(message)
		}
		return nil
	}
}

// ValidateReservedName rejects names in reserved and anything under
// .well-known
func ValidateReservedName(reserved []string) validation.RuleFunc {
	set := make(map[string]struct{}, len(reserved))
	for _, name := range reserved {
		set[name] = struct{}{}
	}
	return func(value any) error {
		s, ok := value.(string)
		if !ok || s == "" {
			return nil
		}
		if _, found := set[s]; found || strings.HasPrefix(s, ".well-known") {
			return errors.New(MessageReservedName)
		}
		return nil
	}
}

// ValidateConfusable rejects names that mix letters from several scripts,
// e.g. a Latin name with a Cyrillic "а" in it
func ValidateConfusable(value any) error {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil
	}
	if IsMixedScript(s) {
		return errors.New(MessageConfusable)
	}
	return nil
}

// ValidateConfusableEmail applies the mixed script check to the local part
// and the domain separately
func ValidateConfusableEmail(value any) error {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil
	}

	at := strings.LastIndex(s, "@")
	if at < 0 {
		return nil
	}

	local, domain := s[:at], s[at+1:]
	if IsMixedScript(local) || IsMixedScript(domain) {
		return errors.New(MessageConfusableEmail)
	}
	return nil
}

// ValidateHTML5Email checks the address against the HTML5 email grammar
func ValidateHTML5Email(value any) error {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil
	}
	if !html5EmailPattern.MatchString(s) {
		return errors.New(MessageInvalidEmail)
	}
	return nil
}

var scriptTables = []struct {
	name  string
	table *unicode.RangeTable
}{
	{"Latin", unicode.Latin},
	{"Cyrillic", unicode.Cyrillic},
	{"Greek", unicode.Greek},
	{"Armenian", unicode.Armenian},
	{"Cherokee", unicode.Cherokee},
	{"Coptic", unicode.Coptic},
	{"Georgian", unicode.Georgian},
	{"Hebrew", unicode.Hebrew},
	{"Arabic", unicode.Arabic},
	{"Han", unicode.Han},
	{"Han", unicode.Hiragana},
	{"Han", unicode.Katakana},
	{"Han", unicode.Hangul},
	{"Thai", unicode.Thai},
	{"Devanagari", unicode.Devanagari},
}

// IsMixedScript reports whether the letters in s come from more than one
// script. Digits, punctuation and combining marks are ignored. Kana and
// Hangul count as Han since they are routinely written together.
func IsMixedScript(s string) bool {
	seen := ""
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		script := scriptOf(r)
		if script == "" {
			continue
		}
		if seen == "" {
			seen = script
			continue
		}
		if script != seen {
			return true
		}
	}
	return false
}

func scriptOf(r rune) string {
	for _, st := range scriptTables {
		if unicode.Is(st.table, r) {
			return st.name
		}
	}
	return ""
}

// FoldKey normalizes a value for case-insensitive comparison, so
// "STRASSBURGER" and "straßburger" share a key
func FoldKey(s string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
}

// FormatValidationErrorToMap flattens ozzo validation errors into a field to
// message map
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr == nil {
				continue
			}
			out[field] = ferr.Error()
		}
		return out
	}

	out["form"] = err.Error()
	return out
}
