// Package validate provides format checks for the contact details collected during a conversation.
//
// Every predicate is total: it never panics and simply reports whether the input is acceptable.
package validate

import (
	"regexp"
	"strings"
	"unicode"
)

// Phone numbers must carry between MinPhoneDigits and MaxPhoneDigits digits once separators are removed.
const (
	MinPhoneDigits = 10
	MaxPhoneDigits = 15
	OTPLength      = 6
	MinNameLength  = 2
	MaxNameLength  = 50
)

var (
	emailRegex          = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	phoneSeparatorRegex = regexp.MustCompile(`[-.\s()]`)
	otpRegex            = regexp.MustCompile(`^\d{6}$`)
	nameRegex           = regexp.MustCompile(`^[A-Za-z\s\-'.]+$`)
)

// IsValidEmail reports whether s looks like an email address.
func IsValidEmail(s string) bool {
	if s == "" {
		return false
	}
	return emailRegex.MatchString(strings.TrimSpace(s))
}

// IsValidPhone reports whether s holds 10 to 15 digits after separators and a leading '+' are removed.
func IsValidPhone(s string) bool {
	cleaned := phoneSeparatorRegex.ReplaceAllString(s, "")
	cleaned = strings.TrimPrefix(cleaned, "+")
	if len(cleaned) < MinPhoneDigits || len(cleaned) > MaxPhoneDigits {
		return false
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsValidOTP reports whether s is exactly six digits.
func IsValidOTP(s string) bool {
	return otpRegex.MatchString(strings.TrimSpace(s))
}

// IsValidName reports whether s is a plausible person name.
func IsValidName(s string) bool {
	name := strings.TrimSpace(s)
	if len(name) < MinNameLength || len(name) > MaxNameLength {
		return false
	}
	hasLetter := false
	for _, r := range name {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return false
	}
	return nameRegex.MatchString(name)
}

// NormalizePhone strips separators from a phone number, keeping a leading '+'.
func NormalizePhone(s string) string {
	cleaned := phoneSeparatorRegex.ReplaceAllString(strings.TrimSpace(s), "")
	return cleaned
}
