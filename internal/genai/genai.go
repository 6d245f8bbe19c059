// Package genai wraps the OpenAI chat completion and embedding APIs used for reply generation,
// intent classification and retrieval.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/observability"
)

const (
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = "gpt-4.1-nano"
	// DefaultEmbeddingModel is the embedding model used when none is configured.
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultTemperature keeps replies focused.
	DefaultTemperature = 0.3
	// DefaultMaxTokens bounds a normal reply.
	DefaultMaxTokens = 200
)

var (
	// ErrNoChoicesReturned is returned when the model answers without any choice.
	ErrNoChoicesReturned = errors.New("no choices returned")
	// ErrNoAPIKey is returned when no API key is configured.
	ErrNoAPIKey = errors.New("OPENAI_API_KEY not set")
)

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// embeddingService defines minimal interface for embeddings.
type embeddingService interface {
	Embed(ctx context.Context, params openai.EmbeddingNewParams) (openai.CreateEmbeddingResponse, error)
}

type completionsAdapter struct {
	svc openai.ChatCompletionService
}

func (a completionsAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

type embeddingsAdapter struct {
	svc openai.EmbeddingService
}

func (a embeddingsAdapter) Embed(ctx context.Context, params openai.EmbeddingNewParams) (openai.CreateEmbeddingResponse, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return openai.CreateEmbeddingResponse{}, err
	}
	return *resp, nil
}

// Client wraps the OpenAI services.
type Client struct {
	chat           chatService
	embed          embeddingService
	model          string
	embeddingModel string
	temperature    float64
	maxTokens      int64
	debugMode      bool
	stateDir       string
}

// Opts holds configuration for the client.
type Opts struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float64
	MaxTokens      int64
	DebugMode      bool
	StateDir       string
}

// Option configures the client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithEmbeddingModel sets the embedding model.
func WithEmbeddingModel(model string) Option {
	return func(o *Opts) { o.EmbeddingModel = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithMaxTokens sets the default completion budget.
func WithMaxTokens(n int64) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// WithDebugMode writes every request and response under {stateDir}/debug.
func WithDebugMode(enabled bool) Option {
	return func(o *Opts) { o.DebugMode = enabled }
}

// WithStateDir sets the directory used for debug logs.
func WithStateDir(dir string) Option {
	return func(o *Opts) { o.StateDir = dir }
}

// NewClient initializes a client. The API key comes from WithAPIKey or OPENAI_API_KEY.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:          DefaultModel,
		EmbeddingModel: DefaultEmbeddingModel,
		Temperature:    DefaultTemperature,
		MaxTokens:      DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("genai.NewClient: client created", "model", cfg.Model, "embeddingModel", cfg.EmbeddingModel, "debug", cfg.DebugMode)
	return &Client{
		chat:           completionsAdapter{svc: cli.Chat.Completions},
		embed:          embeddingsAdapter{svc: cli.Embeddings},
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		debugMode:      cfg.DebugMode,
		stateDir:       cfg.StateDir,
	}, nil
}

// Model returns the configured chat model.
func (c *Client) Model() string { return c.model }

// GeneratePromptWithContext generates a reply from a system and a user prompt.
func (c *Client) GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msgs := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	}
	return c.complete(ctx, "GeneratePromptWithContext", c.params(msgs, c.maxTokens))
}

// GenerateWithMessages generates a reply from a full message list with a custom token budget.
// A maxTokens of zero uses the client default.
func (c *Client) GenerateWithMessages(ctx context.Context, msgs []openai.ChatCompletionMessageParamUnion, maxTokens int64) (string, error) {
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	return c.complete(ctx, "GenerateWithMessages", c.params(msgs, maxTokens))
}

// GenerateChat generates a reply from role-tagged messages. Unknown roles are sent as user messages.
func (c *Client) GenerateChat(ctx context.Context, msgs []models.Message, maxTokens int64) (string, error) {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case models.RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case models.RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	return c.complete(ctx, "GenerateChat", c.params(params, maxTokens))
}

// GenerateJSON asks for a JSON object and decodes it into out.
func (c *Client) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error {
	params := c.params([]openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	}, c.maxTokens)
	params.Temperature = openai.Float(0)
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
	}
	content, err := c.complete(ctx, "GenerateJSON", params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), out); err != nil {
		return fmt.Errorf("failed to decode JSON reply: %w", err)
	}
	return nil
}

func (c *Client) params(msgs []openai.ChatCompletionMessageParamUnion, maxTokens int64) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    msgs,
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(maxTokens),
	}
}

func (c *Client) complete(ctx context.Context, method string, params openai.ChatCompletionNewParams) (string, error) {
	start := time.Now()
	resp, err := c.chat.Create(ctx, params)
	c.writeDebugLog(method, params, resp, err)
	if err != nil {
		observability.RecordLLMRequest(method, "error")
		slog.Error("genai.complete: chat completion failed", "method", method, "model", c.model, "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		observability.RecordLLMRequest(method, "empty")
		return "", ErrNoChoicesReturned
	}
	observability.RecordLLMRequest(method, "ok")
	slog.Debug("genai.complete: chat completion succeeded", "method", method, "model", c.model, "duration", time.Since(start))
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// EmbedDocuments embeds a batch of texts.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.embed.Embed(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		observability.RecordLLMRequest("Embed", "error")
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	observability.RecordLLMRequest("Embed", "ok")
	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		idx := int(d.Index)
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[idx] = vec
	}
	return out, nil
}

// EmbedQuery embeds a single query text.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || vecs[0] == nil {
		return nil, ErrNoChoicesReturned
	}
	return vecs[0], nil
}

// stripCodeFence removes a surrounding markdown code fence, which some models add in JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func (c *Client) writeDebugLog(method string, params openai.ChatCompletionNewParams, resp openai.ChatCompletion, callErr error) {
	if !c.debugMode || c.stateDir == "" {
		return
	}
	dir := filepath.Join(c.stateDir, "debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("genai.writeDebugLog: failed to create debug dir", "dir", dir, "error", err)
		return
	}
	entry := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"method":    method,
		"model":     c.model,
		"params":    params,
		"response":  resp,
	}
	if callErr != nil {
		entry["error"] = callErr.Error()
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		slog.Warn("genai.writeDebugLog: failed to marshal entry", "error", err)
		return
	}
	name := fmt.Sprintf("%s_%s.json", time.Now().UTC().Format("20060102T150405.000000000"), method)
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		slog.Warn("genai.writeDebugLog: failed to write entry", "error", err)
	}
}
