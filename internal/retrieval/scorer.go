// Package retrieval ranks campaign documents for free-text queries by
// combining keyword and embedding similarity scores.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/NNNvD/DMA/internal/domain"
	"github.com/NNNvD/DMA/internal/embedding"
	"github.com/NNNvD/DMA/internal/store"
)

const (
	weightEmbedding = 0.7
	weightKeyword   = 0.3

	// candidatePoolSize bounds scoring work per query. Scoring is linear in
	// pool size, so the pool is capped at the most recently updated
	// documents instead of scanning the full corpus.
	candidatePoolSize = 500

	defaultTopK = 5
)

// synonymEntry pairs a query substring with the terms it expands to.
// Iteration order is fixed so query expansion stays deterministic.
type synonymEntry struct {
	key   string
	terms []string
}

var synonyms = []synonymEntry{
	{"npc", []string{"character", "villager", "ally"}},
	{"rule", []string{"mechanic", "guideline"}},
	{"lore", []string{"world", "story", "setting"}},
	{"combat", []string{"battle", "fight"}},
}

// Scorer ranks documents from the candidate pool for a query.
type Scorer struct {
	repo     store.Repository
	embedder *embedding.Service
}

// NewScorer creates a Scorer over the given repository and embedding gateway.
func NewScorer(repo store.Repository, embedder *embedding.Service) *Scorer {
	return &Scorer{repo: repo, embedder: embedder}
}

// ExpandQuery lower-cases the query and expands it with fixed synonyms.
// The full query is always the first term; duplicates are removed while
// preserving first-seen order.
func ExpandQuery(query string) []string {
	q := strings.ToLower(query)
	terms := []string{q}
	for _, entry := range synonyms {
		if strings.Contains(q, entry.key) {
			terms = append(terms, entry.terms...)
		}
	}

	seen := make(map[string]bool, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// keywordScore is the fraction of terms appearing as substrings of text.
// Empty text scores zero.
func keywordScore(text string, terms []string) float64 {
	if text == "" {
		return 0.0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return float64(hits) / float64(max(1, len(terms)))
}

// SearchDocuments ranks the candidate pool for the query and returns the top
// K results. Candidates whose combined score is zero or negative are dropped
// entirely to suppress noise. Ties keep the pool's most-recently-updated-first
// order.
func (s *Scorer) SearchDocuments(ctx context.Context, query string, topK int) ([]domain.ScoredDocument, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	terms := ExpandQuery(query)

	docs, err := s.repo.RecentDocuments(ctx, candidatePoolSize)
	if err != nil {
		return nil, fmt.Errorf("fetch candidate pool: %w", err)
	}

	queryEmbedding := s.embedder.GenerateEmbedding(ctx, query)

	scored := make([]domain.ScoredDocument, 0, len(docs))
	for _, doc := range docs {
		text := doc.Title + "\n" + doc.Summary + "\n" + doc.Content
		kscore := keywordScore(text, terms)

		escore := 0.0
		if len(queryEmbedding) > 0 && doc.HasEmbedding() {
			escore = s.embedder.CosineSimilarity(queryEmbedding, doc.Embedding)
		}

		score := weightEmbedding*escore + weightKeyword*kscore
		if score <= 0 {
			continue
		}
		scored = append(scored, domain.ScoredDocument{
			Score:    score,
			Document: doc.Summarize(),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}
