package embedding

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/NNNvD/DMA/internal/config"
	"github.com/NNNvD/DMA/internal/domain"
)

// Content is clipped before embedding so long documents do not blow the
// backend's input limits; title and summary carry most retrieval signal.
const maxContentChars = 1000

// Service is the embedding gateway. Generation is best-effort: backend
// failures are logged and reported as nil vectors, never as errors.
type Service struct {
	provider Provider // nil when embeddings are disabled
}

// New builds a Service from configuration.
//
// An "openai" provider without an API key downgrades to disabled with a
// warning. A "local" provider whose server cannot be reached is a fatal
// configuration error.
func New(cfg config.EmbeddingConfig) (*Service, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			slog.Warn("OPENAI_API_KEY not set; disabling embeddings")
			return &Service{}, nil
		}
		return &Service{provider: newOpenAIProvider(cfg.APIKey, cfg.Model)}, nil
	case config.ProviderLocal:
		p, err := newOllamaProvider(cfg.LocalURL, cfg.LocalModel)
		if err != nil {
			return nil, err
		}
		slog.Info("Local embedding model ready", "url", cfg.LocalURL, "model", cfg.LocalModel)
		return &Service{provider: p}, nil
	default:
		return &Service{}, nil
	}
}

// NewWithProvider builds a Service around an explicit provider. Used in tests.
func NewWithProvider(p Provider) *Service {
	return &Service{provider: p}
}

// Enabled reports whether a backend is configured.
func (s *Service) Enabled() bool {
	return s.provider != nil
}

// ProviderName returns the active backend name, or "disabled".
func (s *Service) ProviderName() string {
	if s.provider == nil {
		return "disabled"
	}
	return s.provider.Name()
}

// GenerateEmbedding returns a vector for the given text, or nil for blank
// text, a disabled backend, or a backend failure.
func (s *Service) GenerateEmbedding(ctx context.Context, text string) []float64 {
	if s.provider == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	vec, err := s.provider.Embed(ctx, text)
	if err != nil {
		slog.Error("Embedding generation failed", "provider", s.provider.Name(), "error", err)
		return nil
	}
	return vec
}

// GenerateEmbeddingsBatch embeds texts in one backend call. The result always
// has the same length as the input; blank entries map to nil at their original
// index. A backend failure degrades the entire batch to all-nil rather than
// reporting partial results.
func (s *Service) GenerateEmbeddingsBatch(ctx context.Context, texts []string) [][]float64 {
	out := make([][]float64, len(texts))
	if len(texts) == 0 {
		return out
	}

	var valid []string
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			valid = append(valid, t)
		}
	}
	if s.provider == nil || len(valid) == 0 {
		return out
	}

	vectors, err := s.provider.EmbedBatch(ctx, valid)
	if err != nil || len(vectors) != len(valid) {
		slog.Error("Batch embedding failed", "provider", s.provider.Name(), "count", len(valid), "error", err)
		return out
	}

	idx := 0
	for i, t := range texts {
		if strings.TrimSpace(t) != "" {
			out[i] = vectors[idx]
			idx++
		}
	}
	return out
}

// CosineSimilarity computes cosine similarity between two vectors. Empty
// vectors and zero norms yield 0.0.
func (s *Service) CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// DocumentText canonicalizes a document into the text that gets embedded:
// "Label: value" lines in fixed order, absent fields omitted.
func (s *Service) DocumentText(doc *domain.Document) string {
	var parts []string
	if doc.Title != "" {
		parts = append(parts, "Title: "+doc.Title)
	}
	if doc.Summary != "" {
		parts = append(parts, "Summary: "+doc.Summary)
	}
	if doc.Content != "" {
		content := doc.Content
		if len(content) > maxContentChars {
			content = content[:maxContentChars]
		}
		parts = append(parts, "Content: "+content)
	}
	if doc.Kind != "" {
		parts = append(parts, "Kind: "+doc.Kind)
	}
	if doc.SourceName != "" {
		parts = append(parts, "Source: "+doc.SourceName)
	}
	return strings.Join(parts, "\n")
}
