package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores/chroma"
)

var (
	// ErrNoEmbedder is returned when an index is used without an embedder.
	ErrNoEmbedder = errors.New("no embedder configured")
	// ErrNoLLM is returned when an answer is requested without a chat model.
	ErrNoLLM = errors.New("no chat model configured")
)

// Index stores documents and finds the ones most similar to a query.
type Index interface {
	AddDocuments(ctx context.Context, docs []schema.Document) error
	Search(ctx context.Context, query string, k int) ([]schema.Document, error)
}

type vectorDoc struct {
	doc schema.Document
	vec []float32
}

// MemoryIndex is an in-process cosine-similarity index.
type MemoryIndex struct {
	embedder embeddings.Embedder
	mu       sync.RWMutex
	docs     []vectorDoc
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex(e embeddings.Embedder) *MemoryIndex {
	return &MemoryIndex{embedder: e}
}

// AddDocuments embeds and stores docs.
func (m *MemoryIndex) AddDocuments(ctx context.Context, docs []schema.Document) error {
	if m.embedder == nil {
		return ErrNoEmbedder
	}
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.PageContent
	}
	vecs, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vecs) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vecs), len(docs))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range docs {
		m.docs = append(m.docs, vectorDoc{doc: d, vec: vecs[i]})
	}
	return nil
}

// Search returns up to k documents ordered by descending cosine similarity. Score is set on each result.
func (m *MemoryIndex) Search(ctx context.Context, query string, k int) ([]schema.Document, error) {
	if m.embedder == nil {
		return nil, ErrNoEmbedder
	}
	m.mu.RLock()
	empty := len(m.docs) == 0
	m.mu.RUnlock()
	if empty || k <= 0 {
		return nil, nil
	}
	q, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	m.mu.RLock()
	scored := make([]schema.Document, 0, len(m.docs))
	for _, vd := range m.docs {
		d := vd.doc
		d.Score = cosine(q, vd.vec)
		scored = append(scored, d)
	}
	m.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Len returns the number of stored documents.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// ChromaIndex stores documents in a Chroma collection.
type ChromaIndex struct {
	store chroma.Store
}

// NewChromaIndex connects to Chroma at url using namespace as the collection.
func NewChromaIndex(url, namespace string, e embeddings.Embedder) (*ChromaIndex, error) {
	if e == nil {
		return nil, ErrNoEmbedder
	}
	store, err := chroma.New(
		chroma.WithChromaURL(url),
		chroma.WithEmbedder(e),
		chroma.WithDistanceFunction("cosine"),
		chroma.WithNameSpace(namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open chroma store: %w", err)
	}
	return &ChromaIndex{store: store}, nil
}

// AddDocuments adds docs to the collection.
func (c *ChromaIndex) AddDocuments(ctx context.Context, docs []schema.Document) error {
	if _, err := c.store.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("failed to add documents to chroma: %w", err)
	}
	return nil
}

// Search runs a similarity search.
func (c *ChromaIndex) Search(ctx context.Context, query string, k int) ([]schema.Document, error) {
	docs, err := c.store.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("chroma similarity search failed: %w", err)
	}
	return docs, nil
}
