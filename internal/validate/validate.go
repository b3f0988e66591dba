// Package validate holds pure input checks. Every function returns either a
// normalised value or an *apperr.Error describing the first failure.
package validate

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/tiketi/apiserver/internal/apperr"
)

// Email checks that raw contains exactly one "@" with a non-empty local part
// and domain, and returns it trimmed and lower-cased.
func Email(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if strings.Count(email, "@") != 1 {
		return "", apperr.InvalidEmail("email must contain a single @")
	}
	local, domain, _ := strings.Cut(email, "@")
	if local == "" || domain == "" {
		return "", apperr.InvalidEmail("email must have a name and a domain")
	}
	if strings.ContainsAny(email, " \t\r\n") {
		return "", apperr.InvalidEmail("email must not contain whitespace")
	}
	return email, nil
}

// Phone checks that raw is an international number ("+" followed by a
// country code) that is valid against the numbering plan of its region.
// The result is in E.164 form.
func Phone(raw string) (string, error) {
	phone := strings.TrimSpace(raw)
	if !strings.HasPrefix(phone, "+") {
		return "", apperr.InvalidPhone("phone number must start with + and a country code")
	}

	num, err := phonenumbers.Parse(phone, "")
	if err != nil {
		return "", apperr.InvalidPhone("phone number is not valid")
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", apperr.InvalidPhone("phone number is not valid")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// Password rejects passwords bcrypt cannot hash.
func Password(raw string) error {
	if len(raw) > MaxPasswordBytes {
		return apperr.InvalidInput("password", fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes))
	}
	return nil
}
