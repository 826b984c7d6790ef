// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"encoding/json"

	"github.com/NNNvD/DMA/internal/domain"
)

// Repository defines the interface for persisting documents and campaign context.
type Repository interface {
	// ListDocuments returns a filtered, paginated document listing ordered
	// by update time descending.
	ListDocuments(ctx context.Context, filter domain.DocumentFilter) (*domain.DocumentPage, error)

	// GetDocument retrieves a document by ID. Returns nil when not found.
	GetDocument(ctx context.Context, id int64) (*domain.Document, error)

	// CreateDocument inserts a document and fills in its ID and timestamps.
	CreateDocument(ctx context.Context, doc *domain.Document) error

	// UpdateDocument persists mutable document fields and bumps updated_at.
	UpdateDocument(ctx context.Context, doc *domain.Document) error

	// DeleteDocument removes a document. Returns false when not found.
	DeleteDocument(ctx context.Context, id int64) (bool, error)

	// RecentDocuments returns up to limit documents ordered by update time
	// descending. This is the retrieval candidate pool.
	RecentDocuments(ctx context.Context, limit int) ([]*domain.Document, error)

	// SaveEmbedding persists a retrieval vector on a document without
	// touching updated_at.
	SaveEmbedding(ctx context.Context, id int64, embedding []float64) error

	// DocumentsMissingEmbedding returns up to limit documents that have no
	// stored retrieval vector, oldest first.
	DocumentsMissingEmbedding(ctx context.Context, limit int) ([]*domain.Document, error)

	// SaveContext creates or replaces a context entry by key.
	SaveContext(ctx context.Context, key string, data json.RawMessage) (*domain.ContextEntry, error)

	// LoadContext retrieves a context entry by key. Returns nil when not found.
	LoadContext(ctx context.Context, key string) (*domain.ContextEntry, error)

	// DeleteContext removes a context entry. Returns false when not found.
	DeleteContext(ctx context.Context, key string) (bool, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
