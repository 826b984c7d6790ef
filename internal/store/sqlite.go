package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/NNNvD/DMA/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		source_name TEXT,
		title TEXT NOT NULL,
		content TEXT,
		summary TEXT,
		url TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		embedding TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(kind);
	CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(updated_at);

	CREATE TABLE IF NOT EXISTS contexts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL UNIQUE,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_contexts_key ON contexts(key);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const documentColumns = `id, kind, source_name, title, content, summary, url, created_at, updated_at, embedding`

func scanDocument(row interface{ Scan(...any) error }) (*domain.Document, error) {
	var doc domain.Document
	var sourceName, content, summary, url, embedding sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&doc.ID, &doc.Kind, &sourceName, &doc.Title,
		&content, &summary, &url, &createdAt, &updatedAt, &embedding,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan document row: %w", err)
	}

	doc.SourceName = sourceName.String
	doc.Content = content.String
	doc.Summary = summary.String
	doc.URL = url.String
	doc.CreatedAt = time.Unix(createdAt, 0)
	doc.UpdatedAt = time.Unix(updatedAt, 0)

	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &doc.Embedding); err != nil {
			// A corrupt vector must not break document reads; retrieval
			// treats a missing embedding as score zero.
			doc.Embedding = nil
		}
	}

	return &doc, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// ListDocuments returns a filtered, paginated document listing.
func (s *SQLiteStore) ListDocuments(ctx context.Context, filter domain.DocumentFilter) (*domain.DocumentPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	where := ` WHERE 1=1`
	args := []any{}
	if filter.Kind != "" {
		where += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	if filter.Query != "" {
		where += ` AND (title LIKE ? OR content LIKE ?)`
		like := "%" + filter.Query + "%"
		args = append(args, like, like)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(id) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	query := `SELECT ` + documentColumns + ` FROM documents` + where +
		` ORDER BY updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := []*domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	pages := (total + pageSize - 1) / pageSize
	return &domain.DocumentPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    pages,
	}, nil
}

// GetDocument retrieves a document by ID.
func (s *SQLiteStore) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`
	return scanDocument(s.db.QueryRowContext(ctx, query, id))
}

// CreateDocument inserts a document and fills in its ID and timestamps.
func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC().Truncate(time.Second)
	doc.CreatedAt = now
	doc.UpdatedAt = now

	embedding, err := encodeEmbedding(doc.Embedding)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO documents (kind, source_name, title, content, summary, url, created_at, updated_at, embedding)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, query,
		doc.Kind, nullable(doc.SourceName), doc.Title,
		nullable(doc.Content), nullable(doc.Summary), nullable(doc.URL),
		now.Unix(), now.Unix(), embedding,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get inserted document id: %w", err)
	}
	doc.ID = id
	return nil
}

// UpdateDocument persists mutable document fields and bumps updated_at.
func (s *SQLiteStore) UpdateDocument(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC().Truncate(time.Second)
	doc.UpdatedAt = now

	embedding, err := encodeEmbedding(doc.Embedding)
	if err != nil {
		return err
	}

	query := `
	UPDATE documents
	SET kind = ?, source_name = ?, title = ?, content = ?, summary = ?, url = ?, updated_at = ?, embedding = ?
	WHERE id = ?`

	_, err = s.db.ExecContext(ctx, query,
		doc.Kind, nullable(doc.SourceName), doc.Title,
		nullable(doc.Content), nullable(doc.Summary), nullable(doc.URL),
		now.Unix(), embedding, doc.ID,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

// DeleteDocument removes a document.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

// RecentDocuments returns up to limit documents ordered by update time descending.
func (s *SQLiteStore) RecentDocuments(ctx context.Context, limit int) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY updated_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent documents: %w", err)
	}
	return docs, nil
}

// SaveEmbedding persists a retrieval vector on a document.
func (s *SQLiteStore) SaveEmbedding(ctx context.Context, id int64, embedding []float64) error {
	encoded, err := encodeEmbedding(embedding)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE documents SET embedding = ? WHERE id = ?`, encoded, id)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

// DocumentsMissingEmbedding returns documents without a stored retrieval vector.
func (s *SQLiteStore) DocumentsMissingEmbedding(ctx context.Context, limit int) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
	WHERE embedding IS NULL OR embedding = ''
	ORDER BY updated_at ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents missing embedding: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents missing embedding: %w", err)
	}
	return docs, nil
}

// SaveContext creates or replaces a context entry by key.
func (s *SQLiteStore) SaveContext(ctx context.Context, key string, data json.RawMessage) (*domain.ContextEntry, error) {
	now := time.Now().UTC().Truncate(time.Second)
	query := `
	INSERT INTO contexts (key, data, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		data = excluded.data,
		updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, key, string(data), now.Unix()); err != nil {
		return nil, fmt.Errorf("save context: %w", err)
	}
	return s.LoadContext(ctx, key)
}

// LoadContext retrieves a context entry by key.
func (s *SQLiteStore) LoadContext(ctx context.Context, key string) (*domain.ContextEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, key, data, updated_at FROM contexts WHERE key = ?`, key)

	var entry domain.ContextEntry
	var data string
	var updatedAt int64
	err := row.Scan(&entry.ID, &entry.Key, &data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan context row: %w", err)
	}

	entry.Data = json.RawMessage(data)
	entry.UpdatedAt = time.Unix(updatedAt, 0)
	return &entry, nil
}

// DeleteContext removes a context entry.
func (s *SQLiteStore) DeleteContext(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contexts WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete context: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

func encodeEmbedding(embedding []float64) (any, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	return string(encoded), nil
}
