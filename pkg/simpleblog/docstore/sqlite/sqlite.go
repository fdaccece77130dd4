// Package sqlite is a single-file DocumentStore for local development and
// small deployments, backed by the pure-Go modernc SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/simple-blog/pkg/simpleblog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	database_id   TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	id            TEXT NOT NULL,
	data          TEXT NOT NULL DEFAULT '{}',
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	UNIQUE (database_id, collection_id, id)
);`

// Store implements simpleblog.DocumentStore on SQLite. Attributes are kept
// as a JSON text column and merged with json_patch.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to :memory: is a separate database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func handleSQLiteError(operation string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return simpleblog.ErrDocumentNotFound
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return simpleblog.ErrDocumentExists
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return simpleblog.ErrDocumentExists
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
	stamp := now.Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (database_id, collection_id, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		databaseID, collectionID, documentID, string(raw), stamp, stamp)
	if err != nil {
		return nil, handleSQLiteError("create document", err)
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

func (s *Store) UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, data simpleblog.Fields) (*simpleblog.Document, error) {
	if data == nil {
		data = simpleblog.Fields{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE documents SET data = json_patch(data, ?), updated_at = ?
		WHERE database_id = ? AND collection_id = ? AND id = ?
		RETURNING id, database_id, collection_id, data, created_at, updated_at`,
		string(raw), s.now().UTC().Format(time.RFC3339Nano), databaseID, collectionID, documentID)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, handleSQLiteError("update document", err)
	}
	return doc, nil
}

func (s *Store) DeleteDocument(ctx context.Context, databaseID, collectionID, documentID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE database_id = ? AND collection_id = ? AND id = ?`,
		databaseID, collectionID, documentID)
	if err != nil {
		return handleSQLiteError("delete document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return handleSQLiteError("delete document", err)
	}
	if n == 0 {
		return simpleblog.ErrDocumentNotFound
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, databaseID, collectionID, documentID string) (*simpleblog.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, database_id, collection_id, data, created_at, updated_at
		FROM documents WHERE database_id = ? AND collection_id = ? AND id = ?`,
		databaseID, collectionID, documentID)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, handleSQLiteError("get document", err)
	}
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, databaseID, collectionID string, queries ...simpleblog.Query) ([]*simpleblog.Document, error) {
	query, args := buildListQuery(databaseID, collectionID, simpleblog.ParseQueries(queries))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, handleSQLiteError("list documents", err)
	}
	defer rows.Close()

	docs := make([]*simpleblog.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, handleSQLiteError("list documents", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, handleSQLiteError("list documents", err)
	}
	return docs, nil
}

func buildListQuery(databaseID, collectionID string, qs simpleblog.QuerySet) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, database_id, collection_id, data, created_at, updated_at FROM documents WHERE database_id = ? AND collection_id = ?`)
	args := []any{databaseID, collectionID}

	for _, q := range qs.Equal {
		b.WriteString(" AND json_extract(data, ?) = ?")
		args = append(args, `$."`+q.Field+`"`, q.Value)
	}

	b.WriteString(" ORDER BY seq ASC")
	if qs.Limit > 0 || qs.Offset > 0 {
		// SQLite requires LIMIT before OFFSET; -1 means no limit
		limit := qs.Limit
		if limit <= 0 {
			limit = -1
		}
		b.WriteString(" LIMIT " + strconv.Itoa(limit))
		if qs.Offset > 0 {
			b.WriteString(" OFFSET " + strconv.Itoa(qs.Offset))
		}
	}
	return b.String(), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*simpleblog.Document, error) {
	var doc simpleblog.Document
	var raw, created, updated string
	if err := row.Scan(&doc.ID, &doc.DatabaseID, &doc.CollectionID, &raw, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &doc.Data); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
	}
	if doc.Data == nil {
		doc.Data = simpleblog.Fields{}
	}

	var err error
	if doc.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("invalid created_at for %s: %w", doc.ID, err)
	}
	if doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("invalid updated_at for %s: %w", doc.ID, err)
	}
	return &doc, nil
}

var _ simpleblog.DocumentStore = (*Store)(nil)
