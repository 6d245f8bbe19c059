package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/cache"
)

// JSONGenerator is the part of the LLM client the translator needs.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error
}

// Translator translates option labels and replies with the LLM and caches the results.
type Translator struct {
	llm   JSONGenerator
	cache *cache.Cache
}

// NewTranslator creates a translator. A nil llm makes every call return its input unchanged.
func NewTranslator(llm JSONGenerator, c *cache.Cache) *Translator {
	if c == nil {
		c = cache.New(0)
	}
	return &Translator{llm: llm, cache: c}
}

const translateSystemPrompt = `You translate short user interface texts. Reply with a JSON object {"translations": [...]} holding one string per input, in the same order. No other text.`

// TranslateBatch translates texts into lang. English targets, a missing LLM, failures and
// length mismatches all return the originals.
func (t *Translator) TranslateBatch(ctx context.Context, appID, lang string, texts []string) []string {
	out := append([]string(nil), texts...)
	name := PromptLanguageName(lang)
	if t == nil || t.llm == nil || len(texts) == 0 || name == "" {
		return out
	}
	key := cache.TranslationKey(appID, NormalizeCode(lang), texts...)
	if v, ok := t.cache.Get(key); ok {
		if cached, ok := v.([]string); ok && len(cached) == len(texts) {
			return append([]string(nil), cached...)
		}
	}

	raw, _ := json.Marshal(texts)
	prompt := fmt.Sprintf("Translate each of the following to %s. Keep the same order and meaning.\n\n%s", name, raw)
	var resp struct {
		Translations []string `json:"translations"`
	}
	if err := t.llm.GenerateJSON(ctx, translateSystemPrompt, prompt, &resp); err != nil {
		slog.Warn("Translator.TranslateBatch: translation failed, using originals", "lang", lang, "error", err)
		return out
	}
	if len(resp.Translations) != len(texts) {
		slog.Warn("Translator.TranslateBatch: wrong translation count, using originals", "lang", lang, "want", len(texts), "got", len(resp.Translations))
		return out
	}
	for i, s := range resp.Translations {
		if s = strings.TrimSpace(s); s != "" {
			out[i] = s
		}
	}
	t.cache.Set(key, append([]string(nil), out...), cache.TranslationTTL)
	return out
}

// Translate translates one text into lang.
func (t *Translator) Translate(ctx context.Context, appID, lang, text string) string {
	return t.TranslateBatch(ctx, appID, lang, []string{text})[0]
}

// ToEnglish translates user input to English for matching against option labels.
// Input detected as English is returned unchanged.
func (t *Translator) ToEnglish(ctx context.Context, appID, text string) string {
	if t == nil || t.llm == nil || strings.TrimSpace(text) == "" || DetectLanguage(text) == DefaultLanguage {
		return text
	}
	var resp struct {
		Translations []string `json:"translations"`
	}
	raw, _ := json.Marshal([]string{strings.TrimSpace(text)})
	prompt := fmt.Sprintf("Translate each of the following to English. Keep the same order and meaning.\n\n%s", raw)
	if err := t.llm.GenerateJSON(ctx, translateSystemPrompt, prompt, &resp); err != nil || len(resp.Translations) != 1 {
		return text
	}
	return resp.Translations[0]
}
