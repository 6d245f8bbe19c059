// Package intent classifies user utterances: whether a message is a side question, and what a
// user means while a one-time code is pending. Both use a JSON-mode LLM call and fall back to
// keyword rules when the call fails.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/extract"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/observability"
)

// JSONGenerator is the part of the LLM client the classifier needs.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error
}

// QuestionType categorizes a side question.
type QuestionType string

const (
	QuestionNone         QuestionType = "none"
	QuestionPricing      QuestionType = "pricing"
	QuestionAvailability QuestionType = "availability"
	QuestionLocation     QuestionType = "location"
	QuestionService      QuestionType = "service_info"
	QuestionProcess      QuestionType = "process"
	QuestionGeneral      QuestionType = "general"
)

// Intent is the result of question classification.
type Intent struct {
	IsQuestion   bool         `json:"is_question"`
	QuestionType QuestionType `json:"question_type"`
	Confidence   float64      `json:"confidence"`
}

// OTPKind is what the user wants while a one-time code is pending.
type OTPKind string

const (
	OTPChangeEmail OTPKind = "change_email"
	OTPChangePhone OTPKind = "change_phone"
	OTPResend      OTPKind = "resend_otp"
	OTPEnter       OTPKind = "enter_otp"
	OTPOther       OTPKind = "other"
)

// OTPIntent is the result of OTP intent classification.
type OTPIntent struct {
	Kind           OTPKind `json:"otp_intent"`
	ExtractedEmail string  `json:"extracted_email,omitempty"`
	ExtractedPhone string  `json:"extracted_phone,omitempty"`
}

// Contacts are the contact values a code is currently pending for.
type Contacts struct {
	Email string
	Phone string
}

// Classifier classifies utterances.
type Classifier struct {
	llm JSONGenerator
}

// NewClassifier creates a classifier. A nil llm uses the keyword rules only.
func NewClassifier(llm JSONGenerator) *Classifier {
	return &Classifier{llm: llm}
}

const intentSystemPrompt = `You classify a single message sent to a lead-generation assistant.
Reply with a JSON object: {"is_question": bool, "question_type": one of "pricing", "availability", "location", "service_info", "process", "general", "none", "confidence": number between 0 and 1}.
A message is a question when the user asks for information, even if it also provides a name, email, phone number or choice.
Plain answers such as names, emails, phone numbers, numbers or option choices are not questions.`

// ClassifyIntent reports whether text asks a question. Without a model the keyword rules decide;
// a failed model call means "not a question".
func (c *Classifier) ClassifyIntent(ctx context.Context, text string) Intent {
	text = strings.TrimSpace(text)
	if text == "" {
		return Intent{QuestionType: QuestionNone}
	}
	if c == nil || c.llm == nil {
		return keywordIntent(text)
	}
	var out Intent
	if err := c.llm.GenerateJSON(ctx, intentSystemPrompt, text, &out); err != nil {
		slog.Warn("Classifier.ClassifyIntent: classification failed, treating as not a question", "error", err)
		observability.RecordLLMRequest("ClassifyIntent", "fallback")
		return Intent{QuestionType: QuestionNone}
	}
	if out.QuestionType == "" {
		out.QuestionType = QuestionNone
		if out.IsQuestion {
			out.QuestionType = QuestionGeneral
		}
	}
	if !out.IsQuestion {
		out.QuestionType = QuestionNone
	}
	return out
}

var (
	questionStart = regexp.MustCompile(`(?i)^(what|when|where|which|who|whom|whose|why|how|can|could|do|does|did|is|are|will|would|should|may|have|has)\b`)
	questionTypes = []struct {
		kind QuestionType
		re   *regexp.Regexp
	}{
		{QuestionPricing, regexp.MustCompile(`(?i)\b(price|prices|pricing|cost|costs|fee|fees|charge|how much|expensive|cheap|insurance)\b`)},
		{QuestionAvailability, regexp.MustCompile(`(?i)\b(open|hours|available|availability|today|tomorrow|weekend|schedule|when)\b`)},
		{QuestionLocation, regexp.MustCompile(`(?i)\b(where|located|location|address|parking|directions)\b`)},
		{QuestionProcess, regexp.MustCompile(`(?i)\b(how long|process|procedure|hurt|pain|recovery|steps)\b`)},
		{QuestionService, regexp.MustCompile(`(?i)\b(do you (offer|do|provide)|service|services|treatment|treatments)\b`)},
	}
)

func keywordIntent(text string) Intent {
	if !strings.Contains(text, "?") && !questionStart.MatchString(text) {
		return Intent{QuestionType: QuestionNone, Confidence: 0.5}
	}
	for _, qt := range questionTypes {
		if qt.re.MatchString(text) {
			return Intent{IsQuestion: true, QuestionType: qt.kind, Confidence: 0.6}
		}
	}
	return Intent{IsQuestion: true, QuestionType: QuestionGeneral, Confidence: 0.5}
}

const otpSystemPrompt = `A lead-generation assistant has sent a one-time verification code and is waiting for the user to enter it.
Classify what the user wants. Reply with a JSON object: {"otp_intent": one of "change_email", "change_phone", "resend_otp", "enter_otp", "other", "extracted_email": string or null, "extracted_phone": string or null}.
- change_email: the user says the email is wrong or gives a different email address.
- change_phone: the user says the phone number is wrong or gives a different number.
- resend_otp: the user did not receive the code or asks for a new one.
- enter_otp: the user is entering a code.
- other: anything else.
Use semantic understanding of what the user means, not exact words. Put a new email or phone number in the extracted fields.`

// ClassifyOTPIntent classifies a message received while a code is pending. Addresses found by
// the deterministic extractors take precedence over ones returned by the model.
func (c *Classifier) ClassifyOTPIntent(ctx context.Context, text string, history []models.Message, pending Contacts) OTPIntent {
	text = strings.TrimSpace(text)
	if text == "" {
		return OTPIntent{Kind: OTPOther}
	}
	if c == nil || c.llm == nil {
		return keywordOTPIntent(text, pending)
	}
	var out struct {
		Kind  OTPKind `json:"otp_intent"`
		Email *string `json:"extracted_email"`
		Phone *string `json:"extracted_phone"`
	}
	if err := c.llm.GenerateJSON(ctx, otpSystemPrompt, otpUserPrompt(text, history, pending), &out); err != nil {
		slog.Warn("Classifier.ClassifyOTPIntent: classification failed, treating as other", "error", err)
		observability.RecordLLMRequest("ClassifyOTPIntent", "fallback")
		return OTPIntent{Kind: OTPOther}
	}
	res := OTPIntent{Kind: out.Kind}
	switch res.Kind {
	case OTPChangeEmail, OTPChangePhone, OTPResend, OTPEnter:
	default:
		res.Kind = OTPOther
	}
	if out.Email != nil {
		res.ExtractedEmail = strings.TrimSpace(*out.Email)
	}
	if out.Phone != nil {
		res.ExtractedPhone = strings.TrimSpace(*out.Phone)
	}
	if e, ok := extract.Email(text); ok {
		res.ExtractedEmail = e
	}
	if p, ok := extract.Phone(text); ok {
		res.ExtractedPhone = p
	}
	return res
}

const otpHistoryTurns = 6

func otpUserPrompt(text string, history []models.Message, pending Contacts) string {
	var b strings.Builder
	if pending.Email != "" {
		fmt.Fprintf(&b, "Code pending for email: %s\n", pending.Email)
	}
	if pending.Phone != "" {
		fmt.Fprintf(&b, "Code pending for phone: %s\n", pending.Phone)
	}
	if len(history) > otpHistoryTurns {
		history = history[len(history)-otpHistoryTurns:]
	}
	if len(history) > 0 {
		raw, _ := json.Marshal(history)
		fmt.Fprintf(&b, "Recent conversation: %s\n", raw)
	}
	fmt.Fprintf(&b, "User message: %s", text)
	return b.String()
}

var (
	resendPattern      = regexp.MustCompile(`(?i)\b(resend|send (it |the code |a new code )?again|send another|new code|didn'?t (receive|get)|did not (receive|get)|lost (the )?code|can'?t find|haven'?t (received|got)|no code)\b`)
	changePhonePattern = regexp.MustCompile(`(?i)(wrong (phone|number)|different (phone|number)|another (phone|number)|new (phone|number)|change (my |the )?(phone|number)|not my number)`)
	changeEmailPattern = regexp.MustCompile(`(?i)(wrong (email|e-mail|address)|different (email|e-mail)|another (email|e-mail)|new (email|e-mail)|change (my |the )?(email|e-mail)|not my (email|e-mail))`)
)

func keywordOTPIntent(text string, pending Contacts) OTPIntent {
	email, hasEmail := extract.Email(text)
	phone, hasPhone := extract.Phone(text)
	res := OTPIntent{Kind: OTPOther, ExtractedEmail: email, ExtractedPhone: phone}
	switch {
	case changeEmailPattern.MatchString(text) || (hasEmail && pending.Email != "" && !strings.EqualFold(email, pending.Email)):
		res.Kind = OTPChangeEmail
	case changePhonePattern.MatchString(text) || (hasPhone && pending.Phone != "" && phone != pending.Phone):
		res.Kind = OTPChangePhone
	case resendPattern.MatchString(text):
		res.Kind = OTPResend
	default:
		if _, ok := extract.OTPCode(text); ok {
			res.Kind = OTPEnter
		}
	}
	return res
}
