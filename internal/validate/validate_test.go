package validate

import "testing"

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"john.doe@example.com", true},
		{"a+b@sub.domain.org", true},
		{"  padded@example.com  ", true},
		{"missing-at.example.com", false},
		{"no@tld", false},
		{"bad@domain.c", false},
		{"", false},
		{"two@@example.com", false},
	}
	for _, tt := range tests {
		if got := IsValidEmail(tt.in); got != tt.want {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"5551234567", true},
		{"+44 20 7946 0958", true},
		{"(555) 123-4567", true},
		{"555.123.4567", true},
		{"123456789", false},
		{"1234567890123456", false},
		{"555-CALL-NOW", false},
		{"", false},
		{"++5551234567", false},
	}
	for _, tt := range tests {
		if got := IsValidPhone(tt.in); got != tt.want {
			t.Errorf("IsValidPhone(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsValidOTP(t *testing.T) {
	for _, ok := range []string{"123456", " 000000 "} {
		if !IsValidOTP(ok) {
			t.Errorf("IsValidOTP(%q) = false, want true", ok)
		}
	}
	for _, bad := range []string{"12345", "1234567", "12a456", ""} {
		if IsValidOTP(bad) {
			t.Errorf("IsValidOTP(%q) = true, want false", bad)
		}
	}
}

func TestIsValidName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"John Smith", true},
		{"Mary-Jane O'Neil", true},
		{"Dr. Who", true},
		{"J", false},
		{"John3", false},
		{"---", false},
		{"John_Smith", false},
		{"A very long name that certainly exceeds the fifty character limit", false},
	}
	for _, tt := range tests {
		if got := IsValidName(tt.in); got != tt.want {
			t.Errorf("IsValidName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	if got := NormalizePhone("+1 (555) 123-4567"); got != "+15551234567" {
		t.Errorf("NormalizePhone = %q", got)
	}
}
