package intent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

type fakeLLM struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeLLM) GenerateJSON(_ context.Context, _ string, userPrompt string, out any) error {
	f.prompt = userPrompt
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), out)
}

func TestClassifyIntent_LLM(t *testing.T) {
	llm := &fakeLLM{reply: `{"is_question": true, "question_type": "pricing", "confidence": 0.9}`}
	got := NewClassifier(llm).ClassifyIntent(context.Background(), "my email is a@b.co, how much does it cost?")
	if !got.IsQuestion || got.QuestionType != QuestionPricing || got.Confidence != 0.9 {
		t.Errorf("unexpected intent %+v", got)
	}
}

func TestClassifyIntent_NotQuestionClearsType(t *testing.T) {
	llm := &fakeLLM{reply: `{"is_question": false, "question_type": "pricing"}`}
	got := NewClassifier(llm).ClassifyIntent(context.Background(), "John")
	if got.IsQuestion || got.QuestionType != QuestionNone {
		t.Errorf("unexpected intent %+v", got)
	}
}

func TestClassifyIntent_ErrorMeansNotAQuestion(t *testing.T) {
	c := NewClassifier(&fakeLLM{err: errors.New("boom")})
	for _, text := range []string{"How much does whitening cost?", "where are you located", "John Smith"} {
		got := c.ClassifyIntent(context.Background(), text)
		if got.IsQuestion || got.QuestionType != QuestionNone {
			t.Errorf("ClassifyIntent(%q) after a model error = %+v, want not a question", text, got)
		}
	}
}

func TestClassifyOTPIntent_ErrorMeansOther(t *testing.T) {
	c := NewClassifier(&fakeLLM{err: errors.New("boom")})
	pending := Contacts{Email: "a@x.com"}
	for _, text := range []string{"please resend", "wrong email, use b@y.com", "123456"} {
		if got := c.ClassifyOTPIntent(context.Background(), text, nil, pending); got.Kind != OTPOther {
			t.Errorf("ClassifyOTPIntent(%q) after a model error = %s, want other", text, got.Kind)
		}
	}
}

func TestClassifyIntent_KeywordRulesWithoutModel(t *testing.T) {
	c := NewClassifier(nil)
	tests := []struct {
		text string
		want bool
		kind QuestionType
	}{
		{"How much does whitening cost?", true, QuestionPricing},
		{"where are you located", true, QuestionLocation},
		{"is it safe?", true, QuestionGeneral},
		{"John Smith", false, QuestionNone},
		{"2", false, QuestionNone},
	}
	for _, tt := range tests {
		got := c.ClassifyIntent(context.Background(), tt.text)
		if got.IsQuestion != tt.want || got.QuestionType != tt.kind {
			t.Errorf("ClassifyIntent(%q) = %+v, want question=%v type=%s", tt.text, got, tt.want, tt.kind)
		}
	}
}

func TestClassifyOTPIntent_LLM(t *testing.T) {
	llm := &fakeLLM{reply: `{"otp_intent": "change_email", "extracted_email": "B@Y.com", "extracted_phone": null}`}
	c := NewClassifier(llm)
	history := []models.Message{{Role: models.RoleAssistant, Content: "I sent a code to a@x.com"}}
	got := c.ClassifyOTPIntent(context.Background(), "wrong email, use b@y.com", history, Contacts{Email: "a@x.com"})
	if got.Kind != OTPChangeEmail {
		t.Fatalf("expected change_email, got %+v", got)
	}
	if got.ExtractedEmail != "b@y.com" {
		t.Errorf("expected extractor to win, got %q", got.ExtractedEmail)
	}
	if !strings.Contains(llm.prompt, "a@x.com") || !strings.Contains(llm.prompt, "Recent conversation") {
		t.Errorf("prompt missing context: %q", llm.prompt)
	}
}

func TestClassifyOTPIntent_UnknownKind(t *testing.T) {
	c := NewClassifier(&fakeLLM{reply: `{"otp_intent": "dance"}`})
	if got := c.ClassifyOTPIntent(context.Background(), "hello", nil, Contacts{}); got.Kind != OTPOther {
		t.Errorf("expected other, got %s", got.Kind)
	}
}

func TestClassifyOTPIntent_Fallback(t *testing.T) {
	c := NewClassifier(nil)
	pending := Contacts{Email: "a@x.com", Phone: "5551234567"}
	tests := []struct {
		text string
		want OTPKind
	}{
		{"wrong email, use b@y.com", OTPChangeEmail},
		{"b@y.com", OTPChangeEmail},
		{"a@x.com", OTPOther},
		{"that's not my number", OTPChangePhone},
		{"use 5559876543 instead", OTPChangePhone},
		{"I didn't receive anything", OTPResend},
		{"please resend", OTPResend},
		{"123456", OTPEnter},
		{"what?", OTPOther},
	}
	for _, tt := range tests {
		if got := c.ClassifyOTPIntent(context.Background(), tt.text, nil, pending); got.Kind != tt.want {
			t.Errorf("ClassifyOTPIntent(%q) = %s, want %s", tt.text, got.Kind, tt.want)
		}
	}
}
