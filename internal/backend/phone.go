package backend

import "strings"

// FormatE164 formats a phone number for the backend. A leading '+' is kept and separators are dropped.
// Ten digits are treated as a North American number; anything else already carries its country code.
func FormatE164(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if (r >= '0' && r <= '9') || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	if len(cleaned) == 10 {
		return "+1" + cleaned
	}
	return "+" + cleaned
}
