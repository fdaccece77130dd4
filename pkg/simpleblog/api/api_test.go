package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	blobmemory "github.com/tendant/simple-blog/pkg/simpleblog/blobstore/memory"
	docmemory "github.com/tendant/simple-blog/pkg/simpleblog/docstore/memory"
	"github.com/tendant/simple-blog/pkg/simpleblog/fileurl"
	identitymemory "github.com/tendant/simple-blog/pkg/simpleblog/identity/memory"
	"github.com/tendant/simple-blog/pkg/simpleblog/presigned"
	"golang.org/x/crypto/bcrypt"
)

const testEndpoint = "http://blog.test/api/v1"

type testServer struct {
	router chi.Router
	blog   *simpleblog.Blog
	blobs  *blobmemory.Backend
	signer *presigned.Signer
}

// setupAPITest wires the API over in-memory stores, mounted the way the
// server mounts it.
func setupAPITest(t *testing.T) *testServer {
	t.Helper()

	signer := presigned.New(presigned.WithSecretKey("file-secret"))
	urls, err := fileurl.New(testEndpoint, "", signer)
	require.NoError(t, err)
	blobs := blobmemory.New(urls)

	blog, err := simpleblog.New(simpleblog.Config{
		Endpoint:     testEndpoint,
		DatabaseID:   "blog",
		CollectionID: "posts",
		BucketID:     "images",
	},
		simpleblog.WithDocumentStore(docmemory.New()),
		simpleblog.WithBlobStore(blobs),
		simpleblog.WithIdentityService(identitymemory.New(identitymemory.WithBcryptCost(bcrypt.MinCost))),
	)
	require.NoError(t, err)

	auth, err := NewAuth("jwt-secret", blog.Sessions)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Mount("/api/v1", Routes(blog, auth, blobs, signer))
	return &testServer{router: router, blog: blog, blobs: blobs, signer: signer}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) jsonRequest(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return ts.do(req)
}

// signup registers email and returns its bearer token and identity ID.
func (ts *testServer) signup(t *testing.T, email string) (string, string) {
	t.Helper()
	w := ts.jsonRequest(http.MethodPost, "/api/v1/sessions/signup", "", simpleblog.SignupInput{
		Email:    email,
		Password: "correct horse",
		Name:     "Test User",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp SessionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token, resp.Session.UserID
}

type formImage struct {
	name     string
	mimeType string
	data     []byte
}

func pngImage() *formImage {
	return &formImage{name: "cover.png", mimeType: "image/png", data: []byte("\x89PNG\r\n\x1a\nfake")}
}

func multipartRequest(t *testing.T, method, path, token string, fields map[string]string, img *formImage) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if img != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, img.name))
		h.Set("Content-Type", img.mimeType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(img.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// createPost publishes a post through the API and returns the response.
func (ts *testServer) createPost(t *testing.T, token string, fields map[string]string) PostResponse {
	t.Helper()
	w := ts.do(multipartRequest(t, http.MethodPost, "/api/v1/posts", token, fields, pngImage()))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var post PostResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&post))
	return post
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

var bg = context.Background()
