package services

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

const (
	maxEmailLength    = 254
	maxUsernameLength = 64
	// argon2 accepts any length; the cap bounds request cost.
	maxPasswordLength = 1024
)

var lower = cases.Lower(language.Und)

// canonicalEmail is the stored form of an email: trimmed and lower-cased.
func canonicalEmail(email string) string {
	return lower.String(strings.TrimSpace(email))
}

// normalizeEmail validates email and returns its canonical form.
func normalizeEmail(email string) (string, error) {
	e := canonicalEmail(email)
	if e == "" {
		return "", fmt.Errorf("%w: email is required", common.ErrorValidation)
	}
	if len(e) > maxEmailLength {
		return "", fmt.Errorf("%w: email too long", common.ErrorValidation)
	}
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return "", fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}
	return e, nil
}

func validatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", common.ErrorValidation)
	}
	if len(password) > maxPasswordLength {
		return fmt.Errorf("%w: password too long", common.ErrorValidation)
	}
	return nil
}

// normalizeUsername trims the username. A blank username counts as absent.
func normalizeUsername(username *string) (*string, error) {
	u := trimOptional(username)
	if u == nil {
		return nil, nil
	}
	if utf8.RuneCountInString(*u) > maxUsernameLength {
		return nil, fmt.Errorf("%w: username too long", common.ErrorValidation)
	}
	return u, nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
