package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tendant/simple-blog/pkg/simpleblog"
)

type record struct {
	doc simpleblog.Document
	seq uint64
}

// Store is an in-memory implementation of simpleblog.DocumentStore.
// Writes are serialized by a mutex, so concurrent updates to one document
// resolve to whichever write acquires it last.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record
	seq     uint64
	now     func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now for document timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a new in-memory document store
func New(opts ...Option) *Store {
	s := &Store{
		records: make(map[string]*record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(databaseID, collectionID, documentID string) string {
	return databaseID + "/" + collectionID + "/" + documentID
}

// CreateDocument stores a new document
func (s *Store) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data simpleblog.Fields) (*simpleblog.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(databaseID, collectionID, documentID)
	if _, exists := s.records[k]; exists {
		return nil, simpleblog.ErrDocumentExists
	}

	now := s.now().UTC()
	s.seq++
	rec := &record{
		doc: simpleblog.Document{
			ID:           documentID,
			DatabaseID:   databaseID,
			CollectionID: collectionID,
			Data:         data.Clone(),
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		seq: s.seq,
	}
	s.records[k] = rec
	return copyDocument(&rec.doc), nil
}

// UpdateDocument merges data into an existing document
func (s *Store) UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, data simpleblog.Fields) (*simpleblog.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[key(databaseID, collectionID, documentID)]
	if !exists {
		return nil, simpleblog.ErrDocumentNotFound
	}

	for k, v := range data {
		if v == nil {
			delete(rec.doc.Data, k)
			continue
		}
		rec.doc.Data[k] = v
	}
	rec.doc.UpdatedAt = s.now().UTC()
	return copyDocument(&rec.doc), nil
}

// DeleteDocument removes a document
func (s *Store) DeleteDocument(ctx context.Context, databaseID, collectionID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(databaseID, collectionID, documentID)
	if _, exists := s.records[k]; !exists {
		return simpleblog.ErrDocumentNotFound
	}
	delete(s.records, k)
	return nil
}

// GetDocument returns a copy of a stored document
func (s *Store) GetDocument(ctx context.Context, databaseID, collectionID, documentID string) (*simpleblog.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[key(databaseID, collectionID, documentID)]
	if !exists {
		return nil, simpleblog.ErrDocumentNotFound
	}
	return copyDocument(&rec.doc), nil
}

// ListDocuments returns matching documents in creation order
func (s *Store) ListDocuments(ctx context.Context, databaseID, collectionID string, queries ...simpleblog.Query) ([]*simpleblog.Document, error) {
	qs := simpleblog.ParseQueries(queries)

	s.mu.RLock()
	matched := make([]*record, 0)
	for _, rec := range s.records {
		if rec.doc.DatabaseID != databaseID || rec.doc.CollectionID != collectionID {
			continue
		}
		if qs.Matches(rec.doc.Data) {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	if qs.Offset > 0 {
		if qs.Offset >= len(matched) {
			matched = matched[:0]
		} else {
			matched = matched[qs.Offset:]
		}
	}
	if qs.Limit > 0 && qs.Limit < len(matched) {
		matched = matched[:qs.Limit]
	}

	out := make([]*simpleblog.Document, 0, len(matched))
	for _, rec := range matched {
		out = append(out, copyDocument(&rec.doc))
	}
	s.mu.RUnlock()

	return out, nil
}

func copyDocument(doc *simpleblog.Document) *simpleblog.Document {
	c := *doc
	c.Data = doc.Data.Clone()
	return &c
}

var _ simpleblog.DocumentStore = (*Store)(nil)
