package registration_test

import (
	"errors"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	registration "github.com/goliatone/go-registration"
	"github.com/stretchr/testify/assert"
)

func TestValidateReservedName(t *testing.T) {
	rule := registration.ValidateReservedName(registration.DefaultReservedNames)

	for _, name := range []string{
		"admin", "postmaster", "www", "robots.txt", "signup",
		".well-known", ".well-known/acme-challenge",
	} {
		err := rule(name)
		if assert.Error(t, err, name) {
			assert.Equal(t, registration.MessageReservedName, err.Error())
		}
	}

	for _, name := range []string{"alice", "bob", "administrators", "well-known"} {
		assert.NoError(t, rule(name), name)
	}
}

func TestValidateReservedNameCustomList(t *testing.T) {
	rule := registration.ValidateReservedName([]string{"alice"})

	assert.Error(t, rule("alice"))
	assert.NoError(t, rule("admin"))
}

func TestValidateConfusable(t *testing.T) {
	for _, dangerous := range []string{
		"pаypаl",
		"gооgle",
		"ρayρal",
	} {
		err := registration.ValidateConfusable(dangerous)
		if assert.Error(t, err, dangerous) {
			assert.Equal(t, registration.MessageConfusable, err.Error())
		}
	}

	for _, safe := range []any{
		"paypal",
		"google",
		"root",
		"admin",
		"Пётр",
		"山本",
		"user_42",
		3,
	} {
		assert.NoError(t, registration.ValidateConfusable(safe), safe)
	}
}

func TestValidateConfusableEmail(t *testing.T) {
	for _, dangerous := range []string{
		"pаypаl@example.com",
		"gооgle@example.com",
		"ρayρal@example.com",
		"paypal@exаmple.com",
		"google@examρle.com",
	} {
		err := registration.ValidateConfusableEmail(dangerous)
		if assert.Error(t, err, dangerous) {
			assert.Equal(t, registration.MessageConfusableEmail, err.Error())
		}
	}

	for _, safe := range []string{
		"paypal@example.com",
		"google@example.com",
		"Пётр@example.com",
		"山本@example.com",
		"username",
	} {
		assert.NoError(t, registration.ValidateConfusableEmail(safe), safe)
	}
}

func TestValidateHTML5Email(t *testing.T) {
	for _, valid := range []string{
		"test@example.com",
		"test+tag@example.com",
		"first.last@sub.example.co.uk",
		"user@localhost",
		"o'brien@example.com",
	} {
		assert.NoError(t, registration.ValidateHTML5Email(valid), valid)
	}

	for _, invalid := range []string{
		"test",
		"test@",
		"@example.com",
		"test@-example.com",
		"test@example-.com",
		"test@example..com",
		"test @example.com",
		"test@exa mple.com",
		"\"quoted\"@example.com",
	} {
		err := registration.ValidateHTML5Email(invalid)
		if assert.Error(t, err, invalid) {
			assert.Equal(t, registration.MessageInvalidEmail, err.Error())
		}
	}
}

func TestIsMixedScript(t *testing.T) {
	assert.False(t, registration.IsMixedScript(""))
	assert.False(t, registration.IsMixedScript("1234-_."))
	assert.False(t, registration.IsMixedScript("日本語ひらがなカタカナ"))
	assert.True(t, registration.IsMixedScript("abcа"))
}

func TestFoldKey(t *testing.T) {
	assert.Equal(t, registration.FoldKey("STRASSBURGER"), registration.FoldKey("straßburger"))
	assert.Equal(t, registration.FoldKey("Alice"), registration.FoldKey("  alice "))
	assert.Equal(t, registration.FoldKey("ﬁle"), registration.FoldKey("FILE"))
	assert.NotEqual(t, registration.FoldKey("alice"), registration.FoldKey("alicia"))
}

func TestValidateStringEquals(t *testing.T) {
	rule := registration.ValidateStringEquals("swordfish", registration.MessagePasswordMismatch)

	assert.NoError(t, rule("swordfish"))

	err := rule("Swordfish")
	if assert.Error(t, err) {
		assert.Equal(t, registration.MessagePasswordMismatch, err.Error())
	}
}

func TestFormatValidationErrorToMap(t *testing.T) {
	assert.Empty(t, registration.FormatValidationErrorToMap(nil))

	out := registration.FormatValidationErrorToMap(validation.Errors{
		"email":    errors.New("bad email"),
		"username": nil,
	})
	assert.Equal(t, map[string]string{"email": "bad email"}, out)

	out = registration.FormatValidationErrorToMap(errors.New("boom"))
	assert.Equal(t, map[string]string{"form": "boom"}, out)
}
