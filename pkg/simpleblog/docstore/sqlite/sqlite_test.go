package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_CRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc, err := store.CreateDocument(ctx, "blog", "posts", "hello", simpleblog.Fields{"title": "Hello", "status": "active"})
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.ID)

	_, err = store.CreateDocument(ctx, "blog", "posts", "hello", simpleblog.Fields{})
	assert.ErrorIs(t, err, simpleblog.ErrDocumentExists)

	updated, err := store.UpdateDocument(ctx, "blog", "posts", "hello", simpleblog.Fields{"content": "body"})
	require.NoError(t, err)
	assert.Equal(t, "Hello", updated.Data.String("title"))
	assert.Equal(t, "body", updated.Data.String("content"))
	assert.Equal(t, doc.CreatedAt, updated.CreatedAt)

	got, err := store.GetDocument(ctx, "blog", "posts", "hello")
	require.NoError(t, err)
	assert.Equal(t, "body", got.Data.String("content"))

	_, err = store.UpdateDocument(ctx, "blog", "posts", "missing", simpleblog.Fields{"title": "x"})
	assert.ErrorIs(t, err, simpleblog.ErrDocumentNotFound)

	require.NoError(t, store.DeleteDocument(ctx, "blog", "posts", "hello"))
	_, err = store.GetDocument(ctx, "blog", "posts", "hello")
	assert.ErrorIs(t, err, simpleblog.ErrDocumentNotFound)
	assert.ErrorIs(t, store.DeleteDocument(ctx, "blog", "posts", "hello"), simpleblog.ErrDocumentNotFound)
}

func TestStore_List(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, status := range []string{"active", "inactive", "active", "active"} {
		_, err := store.CreateDocument(ctx, "blog", "posts", fmt.Sprintf("post-%d", i), simpleblog.Fields{"status": status, "userID": "u1"})
		require.NoError(t, err)
	}

	active, err := store.ListDocuments(ctx, "blog", "posts", simpleblog.QueryEqual("status", "active"))
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "post-0", active[0].ID)
	assert.Equal(t, "post-3", active[2].ID)

	offsetOnly, err := store.ListDocuments(ctx, "blog", "posts", simpleblog.QueryOffset(3))
	require.NoError(t, err)
	require.Len(t, offsetOnly, 1)
	assert.Equal(t, "post-3", offsetOnly[0].ID)

	page, err := store.ListDocuments(ctx, "blog", "posts",
		simpleblog.QueryEqual("userID", "u1"),
		simpleblog.QueryLimit(2),
		simpleblog.QueryOffset(1),
	)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "post-1", page[0].ID)
}

func TestBuildListQuery(t *testing.T) {
	query, args := buildListQuery("blog", "posts", simpleblog.QuerySet{Offset: 5})
	assert.Contains(t, query, "LIMIT -1 OFFSET 5")
	assert.Len(t, args, 2)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blog.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = store.CreateDocument(ctx, "blog", "posts", "kept", simpleblog.Fields{"title": "Kept"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	doc, err := reopened.GetDocument(ctx, "blog", "posts", "kept")
	require.NoError(t, err)
	assert.Equal(t, "Kept", doc.Data.String("title"))
}
