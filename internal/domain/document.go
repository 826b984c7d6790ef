// Package domain contains core domain types for the DMA application.
package domain

import (
	"time"
)

// Document is a generic RAG document (rules, notes, lore, session logs).
type Document struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	SourceName string    `json:"source_name,omitempty"`
	Title      string    `json:"title"`
	Content    string    `json:"content,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	URL        string    `json:"url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Embedding is the stored retrieval vector, nil when not yet computed.
	Embedding []float64 `json:"-"`
}

// HasEmbedding returns true if a retrieval vector has been computed.
func (d *Document) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	Kind     string
	Query    string
	Page     int
	PageSize int
}

// DocumentPage is a paginated document listing.
type DocumentPage struct {
	Items    []*Document `json:"items"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Pages    int         `json:"pages"`
}

// ScoredDocument is a search hit: a combined relevance score plus a
// projected summary of the matching document.
type ScoredDocument struct {
	Score    float64         `json:"score"`
	Document DocumentSummary `json:"document"`
}

// DocumentSummary is the projection of a document returned from search.
type DocumentSummary struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Kind    string `json:"kind"`
	Summary string `json:"summary,omitempty"`
}

// Summarize projects a document into its search result shape.
func (d *Document) Summarize() DocumentSummary {
	return DocumentSummary{
		ID:      d.ID,
		Title:   d.Title,
		Kind:    d.Kind,
		Summary: d.Summary,
	}
}
