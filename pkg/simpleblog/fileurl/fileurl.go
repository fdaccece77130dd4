// Package fileurl builds the view and preview URLs of blobs served by the
// blog's own HTTP API.
package fileurl

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/presigned"
)

// Builder renders file URLs below an API endpoint. URLs of files that are
// not publicly readable are signed when a signer is configured.
type Builder struct {
	base      *url.URL
	projectID string
	signer    *presigned.Signer
}

// New parses endpoint, e.g. http://localhost:8080/api/v1, and returns a
// Builder for it. signer may be nil.
func New(endpoint, projectID string, signer *presigned.Signer) (*Builder, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	base, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	return &Builder{base: base, projectID: projectID, signer: signer}, nil
}

// FilePath is the route of a single file relative to the endpoint.
func FilePath(bucketID, fileID string) string {
	return "/storage/buckets/" + url.PathEscape(bucketID) + "/files/" + url.PathEscape(fileID)
}

// View returns the URL of the original file.
func (b *Builder) View(bucketID, fileID string, perms []simpleblog.Permission) (string, error) {
	q := url.Values{}
	if b.projectID != "" {
		q.Set("project", b.projectID)
	}
	return b.build(FilePath(bucketID, fileID)+"/view", q, perms)
}

// Preview returns the URL of a transformed copy of the file.
func (b *Builder) Preview(bucketID, fileID string, opts simpleblog.PreviewOptions, perms []simpleblog.Permission) (string, error) {
	q := url.Values{}
	if opts.Width > 0 {
		q.Set("width", strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		q.Set("height", strconv.Itoa(opts.Height))
	}
	if opts.Gravity != "" {
		q.Set("gravity", opts.Gravity)
	}
	if opts.Quality > 0 {
		q.Set("quality", strconv.Itoa(opts.Quality))
	}
	if b.projectID != "" {
		q.Set("project", b.projectID)
	}
	return b.build(FilePath(bucketID, fileID)+"/preview", q, perms)
}

func (b *Builder) build(rel string, q url.Values, perms []simpleblog.Permission) (string, error) {
	path := b.base.Path + rel
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	if !simpleblog.IsPublic(perms) && b.signer.IsEnabled() {
		signed, err := b.signer.SignURL("GET", path, 0)
		if err != nil {
			return "", fmt.Errorf("failed to sign file url: %w", err)
		}
		path = signed
	}

	if b.base.Host == "" {
		return path, nil
	}
	return b.base.Scheme + "://" + b.base.Host + path, nil
}
