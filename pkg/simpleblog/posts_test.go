package simpleblog_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

func createPost(t *testing.T, f *fixture, slug string, status simpleblog.PostStatus) *simpleblog.Post {
	t.Helper()
	post, err := f.blog.Posts.Create(context.Background(), simpleblog.CreatePostInput{
		Title:    "Title of " + slug,
		Slug:     slug,
		Content:  "Content of " + slug,
		Status:   status,
		AuthorID: "author-1",
	})
	require.NoError(t, err)
	return post
}

func TestPosts_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to active", func(t *testing.T) {
		f := newFixture(t)
		post := createPost(t, f, "hello", "")
		assert.Equal(t, "hello", post.Slug)
		assert.Equal(t, simpleblog.PostStatusActive, post.Status)
		assert.Equal(t, "author-1", post.AuthorID)
		assert.False(t, post.CreatedAt.IsZero())
		assert.Equal(t, []string{"hello"}, f.sink.created)
	})

	t.Run("stores the author as userID", func(t *testing.T) {
		f := newFixture(t)
		createPost(t, f, "hello", "")
		doc, err := f.docs.GetDocument(ctx, testConfig.DatabaseID, testConfig.CollectionID, "hello")
		require.NoError(t, err)
		assert.Equal(t, "author-1", doc.Data[simpleblog.FieldAuthorID])
		_, hasImage := doc.Data[simpleblog.FieldFeaturedImage]
		assert.False(t, hasImage)
	})

	t.Run("duplicate slug is a conflict", func(t *testing.T) {
		f := newFixture(t)
		createPost(t, f, "taken", "")

		_, err := f.blog.Posts.Create(ctx, simpleblog.CreatePostInput{Title: "Again", Slug: "taken", AuthorID: "u2"})
		var cerr *simpleblog.CreationError
		require.True(t, errors.As(err, &cerr))
		assert.True(t, cerr.Conflict())
		assert.Equal(t, "failed to create post", cerr.Error())
		assert.ErrorIs(t, err, simpleblog.ErrDocumentExists)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t)
		f.docs.createErr = errInjected

		_, err := f.blog.Posts.Create(ctx, simpleblog.CreatePostInput{Title: "x", Slug: "x"})
		var cerr *simpleblog.CreationError
		require.True(t, errors.As(err, &cerr))
		assert.False(t, cerr.Conflict())
		assert.ErrorIs(t, err, errInjected)
	})

	t.Run("rejects unnormalized slug and bad status", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.blog.Posts.Create(ctx, simpleblog.CreatePostInput{Slug: "Not Normal"})
		assert.ErrorIs(t, err, simpleblog.ErrInvalidSlug)

		_, err = f.blog.Posts.Create(ctx, simpleblog.CreatePostInput{Slug: "ok", Status: "archived"})
		assert.ErrorIs(t, err, simpleblog.ErrInvalidStatus)
	})

	t.Run("never touches the blob store", func(t *testing.T) {
		f := newFixture(t)
		createPost(t, f, "plain", "")
		assert.Zero(t, f.blobs.creates)
	})
}

func TestPosts_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("partial update leaves other fields identical", func(t *testing.T) {
		f := newFixture(t)
		before := createPost(t, f, "post", simpleblog.PostStatusDraft)

		res := f.blog.Posts.Update(ctx, "post", simpleblog.UpdatePostInput{Title: ptr("New title")})
		require.True(t, res.OK(), res.Err())
		after := res.Value()

		assert.Equal(t, "New title", after.Title)
		assert.Equal(t, before.Content, after.Content)
		assert.Equal(t, before.Status, after.Status)
		assert.Equal(t, before.AuthorID, after.AuthorID)
		assert.Equal(t, before.Slug, after.Slug)
		assert.Equal(t, before.CreatedAt, after.CreatedAt)
		assert.Equal(t, []string{"post"}, f.sink.updated)
	})

	t.Run("missing post", func(t *testing.T) {
		f := newFixture(t)
		res := f.blog.Posts.Update(ctx, "nope", simpleblog.UpdatePostInput{Title: ptr("x")})
		assert.False(t, res.OK())
		assert.Equal(t, simpleblog.KindNotFound, res.Kind())
		assert.ErrorIs(t, res.Err(), simpleblog.ErrPostNotFound)
	})

	t.Run("invalid status", func(t *testing.T) {
		f := newFixture(t)
		createPost(t, f, "post", "")
		res := f.blog.Posts.Update(ctx, "post", simpleblog.UpdatePostInput{Status: ptr(simpleblog.PostStatus("gone"))})
		assert.Equal(t, simpleblog.KindInvalid, res.Kind())
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t)
		createPost(t, f, "post", "")
		f.docs.updateErr = errInjected
		res := f.blog.Posts.Update(ctx, "post", simpleblog.UpdatePostInput{Title: ptr("x")})
		assert.Equal(t, simpleblog.KindStore, res.Kind())
		assert.ErrorIs(t, res.Err(), errInjected)
	})
}

func TestPosts_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes document and image", func(t *testing.T) {
		f := newFixture(t)
		uploadFile(t, f.blobs, "img1", simpleblog.PublicRead)
		_, err := f.blog.Posts.Create(ctx, simpleblog.CreatePostInput{Title: "x", Slug: "x", FeaturedImage: "img1"})
		require.NoError(t, err)

		res := f.blog.Posts.Delete(ctx, "x")
		require.True(t, res.OK())
		assert.True(t, res.Value())
		assert.False(t, f.blobs.exists(t, "img1"))
		assert.Equal(t, simpleblog.KindNotFound, f.blog.Posts.Get(ctx, "x").Kind())
		assert.Equal(t, []string{"x"}, f.sink.deleted)
	})

	t.Run("image cleanup failure still succeeds", func(t *testing.T) {
		f := newFixture(t)
		uploadFile(t, f.blobs, "img1", simpleblog.PublicRead)
		_, err := f.blog.Posts.Create(ctx, simpleblog.CreatePostInput{Title: "x", Slug: "x", FeaturedImage: "img1"})
		require.NoError(t, err)
		f.blobs.deleteErr = errInjected

		res := f.blog.Posts.Delete(ctx, "x")
		require.True(t, res.OK())
		assert.True(t, res.Value())
		assert.Equal(t, simpleblog.KindNotFound, f.blog.Posts.Get(ctx, "x").Kind())

		require.Len(t, f.sink.orphans, 1)
		assert.Equal(t, "img1", f.sink.orphans[0].FileID)
		assert.Equal(t, simpleblog.OrphanDeleteCleanupFailed, f.sink.orphans[0].Reason)
	})

	t.Run("document is deleted before the image", func(t *testing.T) {
		f := newFixture(t)
		uploadFile(t, f.blobs, "img1", simpleblog.PublicRead)
		_, err := f.blog.Posts.Create(ctx, simpleblog.CreatePostInput{Title: "x", Slug: "x", FeaturedImage: "img1"})
		require.NoError(t, err)
		f.docs.deleteErr = errInjected

		res := f.blog.Posts.Delete(ctx, "x")
		assert.False(t, res.OK())
		assert.Equal(t, simpleblog.KindStore, res.Kind())
		assert.True(t, f.blobs.exists(t, "img1"), "a failed document delete keeps the image")
		assert.Empty(t, f.blobs.deletes)
	})

	t.Run("missing post", func(t *testing.T) {
		f := newFixture(t)
		res := f.blog.Posts.Delete(ctx, "nope")
		assert.Equal(t, simpleblog.KindNotFound, res.Kind())
	})

	t.Run("post without image", func(t *testing.T) {
		f := newFixture(t)
		createPost(t, f, "plain", "")
		assert.True(t, f.blog.Posts.Delete(ctx, "plain").Value())
		assert.Empty(t, f.blobs.deletes)
	})
}

func TestPosts_Get(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	createPost(t, f, "hello", "")

	res := f.blog.Posts.Get(ctx, "hello")
	require.True(t, res.OK())
	assert.Equal(t, "Title of hello", res.Value().Title)

	missing := f.blog.Posts.Get(ctx, "missing")
	assert.False(t, missing.OK())
	assert.Nil(t, missing.Value())
	assert.Equal(t, simpleblog.KindNotFound, missing.Kind())
}

func TestPosts_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	createPost(t, f, "a", simpleblog.PostStatusActive)
	createPost(t, f, "b", simpleblog.PostStatusDraft)
	createPost(t, f, "c", simpleblog.PostStatusActive)
	createPost(t, f, "d", simpleblog.PostStatusInactive)
	_, err := f.blog.Posts.Create(ctx, simpleblog.CreatePostInput{Title: "e", Slug: "e", AuthorID: "author-2", Status: simpleblog.PostStatusDraft})
	require.NoError(t, err)

	slugs := func(res simpleblog.Result[[]*simpleblog.Post]) []string {
		require.True(t, res.OK(), res.Err())
		out := []string{}
		for _, p := range res.Value() {
			out = append(out, p.Slug)
		}
		return out
	}

	tests := []struct {
		name string
		opts []simpleblog.ListOption
		want []string
	}{
		{"defaults to active", nil, []string{"a", "c"}},
		{"drafts", []simpleblog.ListOption{simpleblog.WithStatus(simpleblog.PostStatusDraft)}, []string{"b", "e"}},
		{"any status", []simpleblog.ListOption{simpleblog.WithAnyStatus()}, []string{"a", "b", "c", "d", "e"}},
		{"author", []simpleblog.ListOption{simpleblog.WithAuthor("author-2")}, []string{"e"}},
		{"author and status", []simpleblog.ListOption{simpleblog.WithAuthor("author-1"), simpleblog.WithStatus(simpleblog.PostStatusDraft)}, []string{"b"}},
		{"limit", []simpleblog.ListOption{simpleblog.WithAnyStatus(), simpleblog.WithLimit(2)}, []string{"a", "b"}},
		{"offset", []simpleblog.ListOption{simpleblog.WithAnyStatus(), simpleblog.WithOffset(3)}, []string{"d", "e"}},
		{"no match", []simpleblog.ListOption{simpleblog.WithAuthor("nobody")}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, slugs(f.blog.Posts.List(ctx, tt.opts...)))
		})
	}

	t.Run("store failure", func(t *testing.T) {
		f.docs.listErr = errInjected
		defer func() { f.docs.listErr = nil }()
		res := f.blog.Posts.List(ctx)
		assert.Equal(t, simpleblog.KindStore, res.Kind())
	})
}

func TestPosts_ConcurrentUpdatesLastWriteWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	createPost(t, f, "race", "")

	f.docs.gate = make(chan struct{})
	titles := []string{"first", "second"}

	var wg sync.WaitGroup
	results := make([]simpleblog.Result[*simpleblog.Post], len(titles))
	for i, title := range titles {
		wg.Add(1)
		go func(i int, title string) {
			defer wg.Done()
			results[i] = f.blog.Posts.Update(ctx, "race", simpleblog.UpdatePostInput{Title: ptr(title)})
		}(i, title)
	}

	f.docs.gate <- struct{}{}
	f.docs.gate <- struct{}{}
	wg.Wait()

	for _, res := range results {
		require.True(t, res.OK(), res.Err())
	}
	require.Len(t, f.docs.applied, 2)

	// No client-side ordering: whichever update the store applied last is
	// the final state.
	last := f.docs.applied[1].String(simpleblog.FieldTitle)
	assert.Equal(t, last, f.blog.Posts.Get(ctx, "race").Value().Title)
	assert.ElementsMatch(t, titles, []string{
		f.docs.applied[0].String(simpleblog.FieldTitle),
		last,
	})
}

func TestPosts_ConcurrentDisjointUpdatesBothApply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	original := createPost(t, f, "merge", simpleblog.PostStatusDraft)

	f.docs.gate = make(chan struct{})
	inputs := []simpleblog.UpdatePostInput{
		{Title: ptr("new title")},
		{Content: ptr("new content")},
	}

	var wg sync.WaitGroup
	results := make([]simpleblog.Result[*simpleblog.Post], len(inputs))
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in simpleblog.UpdatePostInput) {
			defer wg.Done()
			results[i] = f.blog.Posts.Update(ctx, "merge", in)
		}(i, in)
	}

	f.docs.gate <- struct{}{}
	f.docs.gate <- struct{}{}
	wg.Wait()

	for _, res := range results {
		require.True(t, res.OK(), res.Err())
	}
	require.Len(t, f.docs.applied, 2)

	doc, err := f.docs.GetDocument(ctx, testConfig.DatabaseID, testConfig.CollectionID, "merge")
	require.NoError(t, err)
	assert.Equal(t, "new title", doc.Data.String(simpleblog.FieldTitle))
	assert.Equal(t, "new content", doc.Data.String(simpleblog.FieldContent))
	assert.Equal(t, string(original.Status), doc.Data.String(simpleblog.FieldStatus))
}
