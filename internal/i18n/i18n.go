// Package i18n holds the localized fixed replies, language detection and LLM-backed translation.
package i18n

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DefaultLanguage is used when detection fails or a string has no translation.
const DefaultLanguage = "en"

// Keys of the fixed replies.
const (
	OTPSentEmail        = "otp_sent_email"
	OTPSentPhone        = "otp_sent_phone"
	OTPResend           = "otp_resend"
	PerfectOTPSentEmail = "perfect_otp_sent_email"
	PerfectOTPSentPhone = "perfect_otp_sent_phone"
	NoProblemEmail      = "no_problem_email"
	NoProblemPhone      = "no_problem_phone"
	FinalSuccess        = "final_success"
	FinalFallback       = "final_fallback"
	ReviewPrompt        = "review_prompt"
	OTPSendFailEmail    = "otp_send_fail_email"
	OTPSendFailPhone    = "otp_send_fail_phone"
	OTPResendFailEmail  = "otp_resend_fail_email"
	OTPResendFailPhone  = "otp_resend_fail_phone"
	NoEmail             = "no_email"
	NoPhone             = "no_phone"
	OTPWrongCode        = "otp_wrong_code"
	OTPPleaseEnter      = "otp_please_enter"
	FoundEmailCantSend  = "found_email_cant_send"
	FoundPhoneCantSend  = "found_phone_cant_send"
	OTPVerifyFailEmail  = "otp_verify_fail_email"
	OTPVerifyFailPhone  = "otp_verify_fail_phone"
	GenericError        = "generic_error"
	minDetectableLength = 3
)

// String returns the localized string for key, falling back to English. Positional
// arguments replace {0}, {1}, and so on.
func String(key, lang string, args ...any) string {
	table := templates[key]
	tmpl := table[NormalizeCode(lang)]
	if tmpl == "" {
		tmpl = table[DefaultLanguage]
	}
	if tmpl == "" {
		if len(args) > 0 {
			return toString(args[0])
		}
		return ""
	}
	for i, a := range args {
		tmpl = strings.ReplaceAll(tmpl, "{"+itoa(i)+"}", toString(a))
	}
	return tmpl
}

// NormalizeCode reduces a language tag such as "es-MX" or "PT_br" to its base ISO 639-1 code.
// Unparseable input yields DefaultLanguage.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(strings.ReplaceAll(code, "_", "-"))
	if code == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(code)
	if err != nil {
		return DefaultLanguage
	}
	base, _ := tag.Base()
	return base.String()
}

// DetectLanguage returns the ISO 639-1 code of text. Short, numeric or ambiguous text is English.
func DetectLanguage(text string) string {
	cleaned := strings.TrimSpace(text)
	if len([]rune(cleaned)) < minDetectableLength || isNumeric(cleaned) {
		return DefaultLanguage
	}
	info := whatlanggo.Detect(cleaned)
	if !info.IsReliable() {
		return DefaultLanguage
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return DefaultLanguage
	}
	return code
}

func isNumeric(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != ' ' && r != '\t' && r != '\n' {
			return false
		}
	}
	return true
}

var languageNames = map[string]string{
	"af": "Afrikaans", "ar": "Arabic", "bg": "Bulgarian", "bn": "Bengali", "ca": "Catalan",
	"cs": "Czech", "cy": "Welsh", "da": "Danish", "de": "German", "el": "Greek",
	"en": "English", "es": "Spanish", "et": "Estonian", "fa": "Persian", "fi": "Finnish",
	"fr": "French", "gu": "Gujarati", "he": "Hebrew", "hi": "Hindi", "hr": "Croatian",
	"hu": "Hungarian", "id": "Indonesian", "it": "Italian", "ja": "Japanese", "kn": "Kannada",
	"ko": "Korean", "lt": "Lithuanian", "lv": "Latvian", "mk": "Macedonian", "ml": "Malayalam",
	"mr": "Marathi", "ne": "Nepali", "nl": "Dutch", "no": "Norwegian", "pa": "Punjabi",
	"pl": "Polish", "pt": "Portuguese", "ro": "Romanian", "ru": "Russian", "sk": "Slovak",
	"sl": "Slovenian", "so": "Somali", "sq": "Albanian", "sv": "Swedish", "sw": "Swahili",
	"ta": "Tamil", "te": "Telugu", "th": "Thai", "tl": "Tagalog", "tr": "Turkish",
	"uk": "Ukrainian", "ur": "Urdu", "vi": "Vietnamese", "zh": "Chinese",
}

// LanguageName maps a code to its English name, e.g. "ur" to "Urdu". Unknown codes are returned as-is.
func LanguageName(code string) string {
	c := NormalizeCode(code)
	if name, ok := languageNames[c]; ok {
		return name
	}
	return code
}

// PromptLanguageName returns the name to use in a "respond in" instruction, or "" for English
// and unknown codes.
func PromptLanguageName(code string) string {
	c := NormalizeCode(code)
	if c == DefaultLanguage {
		return ""
	}
	return languageNames[c]
}
