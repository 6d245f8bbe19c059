// Package extract pulls structured values (email, phone, one-time code, name) out of free text
// and matches user replies against the lead-type and service option lists.
//
// All functions are pure: the same input always yields the same output.
package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	otpPattern   = regexp.MustCompile(`\b\d{6}\b`)

	// Tried in order; the first pattern to match wins.
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{10,15}\b`),
		regexp.MustCompile(`\+\d{10,15}\b`),
		regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
		regexp.MustCompile(`\b\d{4}[-.\s]?\d{3}[-.\s]?\d{3}\b`),
	}
	phoneSeparators = regexp.MustCompile(`[-.\s]`)

	longDigitRun   = regexp.MustCompile(`\d{10,}`)
	nameCharacters = regexp.MustCompile(`^[A-Za-z\s\-']+$`)

	leadTypePhrases = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(i would like|i'd like|i want)`),
		regexp.MustCompile(`(?i)(call back|appointment|further information|more info)`),
		regexp.MustCompile(`(?i)^(arrange|schedule|book)`),
	}
	nonNamePhrases = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(yes|no|ok|okay|sure|thanks|thank you)$`),
		regexp.MustCompile(`(?i)^(please|can you|could you)`),
	}
)

// Email returns the first email address in text, lowercased.
func Email(text string) (string, bool) {
	m := emailPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(m)), true
}

// Phone returns the first phone-like number in text with separators removed.
func Phone(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, p := range phonePatterns {
		if m := p.FindString(text); m != "" {
			return phoneSeparators.ReplaceAllString(m, ""), true
		}
	}
	return "", false
}

// OTPCode returns the first standalone six-digit code in text.
func OTPCode(text string) (string, bool) {
	m := otpPattern.FindString(text)
	return m, m != ""
}

// Name returns a title-cased name when text plausibly is one.
// Text that looks like contact details, a lead-type choice, or a stock reply is rejected.
func Name(text string, leadTypes []models.LeadTypeOption) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	if strings.Contains(text, "@") || longDigitRun.MatchString(text) {
		return "", false
	}
	if len(leadTypes) > 0 {
		if _, ok := MatchLeadType(text, leadTypes); ok {
			return "", false
		}
	}
	for _, p := range leadTypePhrases {
		if p.MatchString(text) {
			return "", false
		}
	}
	for _, p := range nonNamePhrases {
		if p.MatchString(text) {
			return "", false
		}
	}
	if len(text) < 2 || len(text) > 50 || !nameCharacters.MatchString(text) {
		return "", false
	}
	words := strings.Fields(text)
	if len(words) > 4 {
		return "", false
	}
	for i, w := range words {
		words[i] = capitalize(w)
	}
	name := strings.Join(words, " ")
	slog.Debug("extract.Name: extracted name", "name", name)
	return name, true
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(w string) string {
	if w == "" {
		return w
	}
	lower := strings.ToLower(w)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
