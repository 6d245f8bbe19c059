package i18n

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/LeadPipe/internal/cache"
)

func TestString(t *testing.T) {
	got := String(OTPSentEmail, "en", "a@b.co")
	if !strings.Contains(got, "a@b.co") || !strings.HasPrefix(got, "Great!") {
		t.Errorf("unexpected English string %q", got)
	}
	if got := String(OTPSentEmail, "es-MX", "a@b.co"); !strings.HasPrefix(got, "¡Listo!") {
		t.Errorf("expected Spanish for es-MX, got %q", got)
	}
	if got := String(FinalSuccess, "xx"); got != templates[FinalSuccess]["en"] {
		t.Errorf("unknown language should fall back to English, got %q", got)
	}
	if got := String(OTPVerifyFailPhone, "hi"); got != templates[OTPVerifyFailPhone]["en"] {
		t.Errorf("missing translation should fall back to English, got %q", got)
	}
	if got := String("no_such_key", "en", "x"); got != "x" {
		t.Errorf("unknown key should return first arg, got %q", got)
	}
}

func TestEveryKeyHasEnglish(t *testing.T) {
	for key, table := range templates {
		if table["en"] == "" {
			t.Errorf("key %s has no English template", key)
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	tests := map[string]string{"en": "en", "ES": "es", "pt_BR": "pt", "zh-TW": "zh", "": "en", "!!": "en"}
	for in, want := range tests {
		if got := NormalizeCode(in); got != want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetectLanguage(t *testing.T) {
	if got := DetectLanguage("hi"); got != "en" {
		t.Errorf("short text should be English, got %s", got)
	}
	if got := DetectLanguage("123 456"); got != "en" {
		t.Errorf("numeric text should be English, got %s", got)
	}
	if got := DetectLanguage("Hola, me gustaría reservar una cita para una limpieza dental la próxima semana"); got != "es" {
		t.Errorf("expected Spanish, got %s", got)
	}
}

func TestLanguageNames(t *testing.T) {
	if LanguageName("ur") != "Urdu" || LanguageName("en") != "English" {
		t.Error("unexpected language names")
	}
	if PromptLanguageName("en") != "" || PromptLanguageName("es") != "Spanish" {
		t.Error("unexpected prompt language names")
	}
}

type fakeJSON struct {
	reply string
	err   error
	calls int
}

func (f *fakeJSON) GenerateJSON(ctx context.Context, system, user string, out any) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), out)
}

func TestTranslateBatchCaches(t *testing.T) {
	llm := &fakeJSON{reply: `{"translations": ["Devolución de llamada", "Cita"]}`}
	tr := NewTranslator(llm, cache.New(0))
	in := []string{"Call back", "Appointment"}

	got := tr.TranslateBatch(context.Background(), "app1", "es", in)
	if got[0] != "Devolución de llamada" || got[1] != "Cita" {
		t.Fatalf("unexpected translation %v", got)
	}
	tr.TranslateBatch(context.Background(), "app1", "es", in)
	if llm.calls != 1 {
		t.Errorf("expected cached second call, got %d LLM calls", llm.calls)
	}
}

func TestTranslateBatchFallbacks(t *testing.T) {
	in := []string{"Call back", "Appointment"}
	if got := NewTranslator(&fakeJSON{err: errors.New("down")}, nil).TranslateBatch(context.Background(), "", "es", in); got[0] != "Call back" {
		t.Errorf("failure should return originals, got %v", got)
	}
	if got := NewTranslator(&fakeJSON{reply: `{"translations": ["uno"]}`}, nil).TranslateBatch(context.Background(), "", "es", in); got[1] != "Appointment" {
		t.Errorf("length mismatch should return originals, got %v", got)
	}
	llm := &fakeJSON{reply: `{"translations": ["x", "y"]}`}
	NewTranslator(llm, nil).TranslateBatch(context.Background(), "", "en", in)
	if llm.calls != 0 {
		t.Error("English target should not call the LLM")
	}
	if got := NewTranslator(nil, nil).Translate(context.Background(), "", "es", "hello"); got != "hello" {
		t.Errorf("nil LLM should return input, got %q", got)
	}
}
