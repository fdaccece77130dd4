package simpleblog

import (
	"fmt"
	"log/slog"
)

// Blog wires the post-authoring components to one set of stores.
type Blog struct {
	Posts     *Posts
	Media     *MediaResolver
	Authoring *Authoring
	Sessions  *SessionGateway

	config Config
	blobs  BlobStore
}

type options struct {
	docs      DocumentStore
	blobs     BlobStore
	identity  IdentityService
	sink      EventSink
	logger    *slog.Logger
	preview   PreviewOptions
	newFileID func() string
}

// Option represents a functional option for configuring a Blog
type Option func(*options)

// WithDocumentStore sets the store posts are written to
func WithDocumentStore(store DocumentStore) Option {
	return func(o *options) {
		o.docs = store
	}
}

// WithBlobStore sets the store featured images are uploaded to
func WithBlobStore(store BlobStore) Option {
	return func(o *options) {
		o.blobs = store
	}
}

// WithIdentityService sets the identity service used for sessions
func WithIdentityService(identity IdentityService) Option {
	return func(o *options) {
		o.identity = identity
	}
}

// WithEventSink sets the event sink for post lifecycle events
func WithEventSink(sink EventSink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithLogger sets the logger used by every component
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPreviewOptions overrides the featured image preview transformation
func WithPreviewOptions(preview PreviewOptions) Option {
	return func(o *options) {
		o.preview = preview
	}
}

// WithFileIDGenerator overrides how new blob IDs are chosen
func WithFileIDGenerator(fn func() string) Option {
	return func(o *options) {
		o.newFileID = fn
	}
}

// New creates a Blog for cfg with the given options
func New(cfg Config, opts ...Option) (*Blog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{
		preview: DefaultPreviewOptions(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if o.docs == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if o.blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if o.identity == nil {
		return nil, fmt.Errorf("identity service is required")
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.sink == nil {
		o.sink = NewNoopEventSink()
	}

	posts := NewPosts(o.docs, o.blobs, cfg, o.sink, o.logger)
	return &Blog{
		Posts:     posts,
		Media:     NewMediaResolver(o.blobs, cfg.BucketID, o.preview, o.logger),
		Authoring: NewAuthoring(posts, o.newFileID, o.logger),
		Sessions:  NewSessionGateway(o.identity, o.logger),
		config:    cfg,
		blobs:     o.blobs,
	}, nil
}

// Config returns the resource identifiers the Blog was built with.
func (b *Blog) Config() Config {
	return b.config
}

// BlobStore returns the underlying blob store.
func (b *Blog) BlobStore() BlobStore {
	return b.blobs
}
