package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// Schema creates the documents table. Every collection shares it; the
// attributes of a document live in a single JSONB column.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	database_id   TEXT        NOT NULL,
	collection_id TEXT        NOT NULL,
	id            TEXT        NOT NULL,
	data          JSONB       NOT NULL DEFAULT '{}'::jsonb,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	seq           BIGSERIAL,
	PRIMARY KEY (database_id, collection_id, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_seq_idx ON documents (database_id, collection_id, seq);
`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store implements simpleblog.DocumentStore using PostgreSQL
type Store struct {
	db  DBTX
	now func() time.Time
}

// New creates a new PostgreSQL document store
func New(db DBTX) *Store {
	return &Store{db: db, now: time.Now}
}

// NewWithPool creates a new PostgreSQL document store with connection pool
func NewWithPool(pool *pgxpool.Pool) *Store {
	return New(pool)
}

// Migrate creates the documents table if it does not exist
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate documents schema: %w", err)
	}
	return nil
}

func handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return simpleblog.ErrDocumentNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return simpleblog.ErrDocumentExists
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (s *Store) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data simpleblog.Fields) (*simpleblog.Document, error) {
	if data == nil {
		data = simpleblog.Fields{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	now := s.now().UTC()
	query := `
		INSERT INTO documents (database_id, collection_id, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $5)`

	if _, err := s.db.Exec(ctx, query, databaseID, collectionID, documentID, string(raw), now); err != nil {
		return nil, handlePostgresError("create document", err)
	}

	return &simpleblog.Document{
		ID:           documentID,
		DatabaseID:   databaseID,
		CollectionID: collectionID,
		Data:         data.Clone(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// UpdateDocument merges data into the stored JSONB. The merge happens in a
// single statement, so concurrent updates are ordered by the row lock.
func (s *Store) UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, data simpleblog.Fields) (*simpleblog.Document, error) {
	if data == nil {
		data = simpleblog.Fields{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	query := `
		UPDATE documents
		SET data = jsonb_strip_nulls(data || $4::jsonb), updated_at = $5
		WHERE database_id = $1 AND collection_id = $2 AND id = $3
		RETURNING id, database_id, collection_id, data, created_at, updated_at`

	doc, err := scanDocument(s.db.QueryRow(ctx, query, databaseID, collectionID, documentID, string(raw), s.now().UTC()))
	if err != nil {
		return nil, handlePostgresError("update document", err)
	}
	return doc, nil
}

func (s *Store) DeleteDocument(ctx context.Context, databaseID, collectionID, documentID string) error {
	query := `DELETE FROM documents WHERE database_id = $1 AND collection_id = $2 AND id = $3`

	tag, err := s.db.Exec(ctx, query, databaseID, collectionID, documentID)
	if err != nil {
		return handlePostgresError("delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleblog.ErrDocumentNotFound
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, databaseID, collectionID, documentID string) (*simpleblog.Document, error) {
	query := `
		SELECT id, database_id, collection_id, data, created_at, updated_at
		FROM documents WHERE database_id = $1 AND collection_id = $2 AND id = $3`

	doc, err := scanDocument(s.db.QueryRow(ctx, query, databaseID, collectionID, documentID))
	if err != nil {
		return nil, handlePostgresError("get document", err)
	}
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, databaseID, collectionID string, queries ...simpleblog.Query) ([]*simpleblog.Document, error) {
	query, args := buildListQuery(databaseID, collectionID, simpleblog.ParseQueries(queries))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, handlePostgresError("list documents", err)
	}
	defer rows.Close()

	docs := make([]*simpleblog.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, handlePostgresError("list documents", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list documents", err)
	}
	return docs, nil
}

func buildListQuery(databaseID, collectionID string, qs simpleblog.QuerySet) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, database_id, collection_id, data, created_at, updated_at FROM documents WHERE database_id = $1 AND collection_id = $2`)
	args := []any{databaseID, collectionID}

	for _, q := range qs.Equal {
		args = append(args, q.Field, q.Value)
		fmt.Fprintf(&b, " AND data->>$%d = $%d", len(args)-1, len(args))
	}

	b.WriteString(" ORDER BY seq ASC")
	if qs.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(qs.Limit))
	}
	if qs.Offset > 0 {
		b.WriteString(" OFFSET " + strconv.Itoa(qs.Offset))
	}
	return b.String(), args
}

func scanDocument(row pgx.Row) (*simpleblog.Document, error) {
	var doc simpleblog.Document
	var raw []byte
	if err := row.Scan(&doc.ID, &doc.DatabaseID, &doc.CollectionID, &raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
	}
	if doc.Data == nil {
		doc.Data = simpleblog.Fields{}
	}
	return &doc, nil
}

var _ simpleblog.DocumentStore = (*Store)(nil)
