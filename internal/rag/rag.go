// Package rag answers side questions from a deployment's own context: it turns the context into
// documents, indexes them (Chroma when configured, in memory otherwise) and grounds short LLM
// answers on the most similar ones.
package rag

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"go.opentelemetry.io/otel/attribute"

	"github.com/BTreeMap/LeadPipe/internal/errorsx"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/observability"
)

const (
	// DefaultK is the number of documents retrieved per query.
	DefaultK = 3
	// DefaultHistoryTurns is how much history is sent with an answer.
	DefaultHistoryTurns = 10

	answerMaxTokens     = 200
	shortReplyMaxTokens = 120
	shortReplyFAQs      = 6
	shortReplyFallback  = "Okay."
)

// ChatGenerator is the part of the LLM client used to write answers.
type ChatGenerator interface {
	GenerateChat(ctx context.Context, msgs []models.Message, maxTokens int64) (string, error)
}

// Service builds per-deployment indexes and answers questions with them.
type Service struct {
	llm          ChatGenerator
	embedder     embeddings.Embedder
	chromaURL    string
	k            int
	historyTurns int

	mu      sync.Mutex
	indexes map[string]indexEntry
}

type indexEntry struct {
	fingerprint string
	index       Index
}

// Opts holds configuration for the service.
type Opts struct {
	Embedder     embeddings.Embedder
	ChromaURL    string
	K            int
	HistoryTurns int
}

// Option configures the service.
type Option func(*Opts)

// WithEmbedder sets the embedder used to index documents. Without one, retrieval is disabled
// and answers rely on the FAQ list only.
func WithEmbedder(e embeddings.Embedder) Option {
	return func(o *Opts) { o.Embedder = e }
}

// WithChromaURL stores indexes in Chroma instead of memory.
func WithChromaURL(url string) Option {
	return func(o *Opts) { o.ChromaURL = url }
}

// WithK sets the number of retrieved documents.
func WithK(k int) Option {
	return func(o *Opts) { o.K = k }
}

// WithHistoryTurns sets how many history messages accompany a question.
func WithHistoryTurns(n int) Option {
	return func(o *Opts) { o.HistoryTurns = n }
}

// NewService creates a service.
func NewService(llm ChatGenerator, opts ...Option) *Service {
	cfg := Opts{K: DefaultK, HistoryTurns: DefaultHistoryTurns}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.K <= 0 {
		cfg.K = DefaultK
	}
	return &Service{
		llm:          llm,
		embedder:     cfg.Embedder,
		chromaURL:    cfg.ChromaURL,
		k:            cfg.K,
		historyTurns: cfg.HistoryTurns,
		indexes:      make(map[string]indexEntry),
	}
}

func indexKey(c *models.Context) string {
	if id := c.CacheAppID(); id != "" {
		return id
	}
	if c.UserID != "" {
		return c.UserID
	}
	return "default"
}

func fingerprint(docs []schema.Document) string {
	h := sha1.New()
	for _, d := range docs {
		h.Write([]byte(d.PageContent))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// indexFor returns the index of a deployment, rebuilding it when the context changed.
func (s *Service) indexFor(ctx context.Context, c *models.Context) (Index, error) {
	if s.embedder == nil {
		return nil, ErrNoEmbedder
	}
	docs, err := Split(BuildDocuments(c))
	if err != nil {
		return nil, err
	}
	key := indexKey(c)
	fp := fingerprint(docs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.indexes[key]; ok && e.fingerprint == fp {
		return e.index, nil
	}
	var idx Index
	if s.chromaURL != "" {
		idx, err = NewChromaIndex(s.chromaURL, "leadpipe-"+key+"-"+fp[:8], s.embedder)
		if err != nil {
			return nil, err
		}
	} else {
		idx = NewMemoryIndex(s.embedder)
	}
	if err := idx.AddDocuments(ctx, docs); err != nil {
		return nil, err
	}
	s.indexes[key] = indexEntry{fingerprint: fp, index: idx}
	slog.Info("Service.indexFor: built index", "key", key, "documents", len(docs), "chroma", s.chromaURL != "")
	return idx, nil
}

// Invalidate drops the index of a deployment so the next query rebuilds it.
func (s *Service) Invalidate(appID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, appID)
}

// Retrieve returns the formatted context most relevant to query, or "" when nothing is indexed.
func (s *Service) Retrieve(ctx context.Context, c *models.Context, query string) (string, error) {
	ctx, span := observability.StartSpan(ctx, "rag.Retrieve", attribute.Int("k", s.k))
	defer span.End()
	idx, err := s.indexFor(ctx, c)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonRAGRetrieve)
	}
	docs, err := idx.Search(ctx, query, s.k)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonRAGRetrieve)
	}
	return FormatContext(docs), nil
}

func (s *Service) recent(history []models.Message) []models.Message {
	if s.historyTurns > 0 && len(history) > s.historyTurns {
		history = history[len(history)-s.historyTurns:]
	}
	out := make([]models.Message, 0, len(history))
	for _, m := range history {
		if m.Role == models.RoleUser || m.Role == models.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

// AnswerWithContext answers a side question briefly, grounded on retrieved context. When
// retrieval is unavailable the FAQ list is used instead.
func (s *Service) AnswerWithContext(ctx context.Context, query string, c *models.Context, history []models.Message) (string, error) {
	if s.llm == nil {
		return "", errorsx.Wrap(ErrNoLLM, errorsx.ReasonLLMGenerate)
	}
	retrieved, err := s.Retrieve(ctx, c, query)
	if err != nil {
		slog.Debug("Service.AnswerWithContext: retrieval unavailable, using FAQs", "error", err)
		retrieved = faqContext(c, 0)
	}
	system := fmt.Sprintf("You are a friendly assistant for a %s. Answer the user's question in 1-2 short sentences using ONLY the context below. "+
		"If the context does not contain the answer, say you are not sure and that the team will follow up. "+
		"Do not ask for the user's name, email or phone, and do not list options.", c.ProfessionOrDefault())
	msgs := []models.Message{{Role: models.RoleSystem, Content: system}}
	if retrieved != "" {
		msgs = append(msgs, models.Message{Role: models.RoleSystem, Content: "Context:\n" + retrieved})
	}
	msgs = append(msgs, s.recent(history)...)
	msgs = append(msgs, models.Message{Role: models.RoleUser, Content: query})
	out, err := s.llm.GenerateChat(ctx, msgs, answerMaxTokens)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	return out, nil
}

// Compose writes a conversational reply following instructions, grounded on retrieved context.
// It is used when a step has no deterministic reply for the user's message.
func (s *Service) Compose(ctx context.Context, instructions, query string, c *models.Context, history []models.Message) (string, error) {
	if s.llm == nil {
		return "", errorsx.Wrap(ErrNoLLM, errorsx.ReasonLLMGenerate)
	}
	msgs := []models.Message{{Role: models.RoleSystem, Content: instructions}}
	if retrieved, err := s.Retrieve(ctx, c, query); err == nil && retrieved != "" {
		msgs = append(msgs, models.Message{Role: models.RoleSystem, Content: "Relevant information:\n" + retrieved})
	}
	msgs = append(msgs, s.recent(history)...)
	msgs = append(msgs, models.Message{Role: models.RoleUser, Content: query})
	out, err := s.llm.GenerateChat(ctx, msgs, answerMaxTokens)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	return out, nil
}

// ShortReply answers in one or two sentences with the first FAQs as hints. It never fails;
// errors produce a neutral acknowledgement.
func (s *Service) ShortReply(ctx context.Context, c *models.Context, history []models.Message, message string) string {
	if s.llm == nil {
		return shortReplyFallback
	}
	system := fmt.Sprintf("You are a concise, friendly lead-generation assistant for a %s. "+
		"Answer briefly (1-2 sentences). If unsure, say so. Then continue the flow.", c.ProfessionOrDefault())
	msgs := []models.Message{{Role: models.RoleSystem, Content: system}}
	msgs = append(msgs, s.recent(history)...)
	if faq := faqContext(c, shortReplyFAQs); faq != "" {
		msgs = append(msgs, models.Message{Role: models.RoleSystem, Content: "FAQ context (may help):\n" + faq})
	}
	msgs = append(msgs, models.Message{Role: models.RoleUser, Content: message})
	out, err := s.llm.GenerateChat(ctx, msgs, shortReplyMaxTokens)
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			slog.Warn("Service.ShortReply: generation failed", "error", err)
		}
		return shortReplyFallback
	}
	return out
}

// faqContext lists up to limit FAQs; limit 0 means all.
func faqContext(c *models.Context, limit int) string {
	if c == nil {
		return ""
	}
	faqs := c.FAQs
	if limit > 0 && len(faqs) > limit {
		faqs = faqs[:limit]
	}
	lines := make([]string, 0, len(faqs))
	for _, f := range faqs {
		lines = append(lines, fmt.Sprintf("- Q: %s: A: %s", f.Question, f.Answer))
	}
	return strings.Join(lines, "\n")
}
