package simpleblog

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) PostCreated(ctx context.Context, post *Post) error { return nil }

func (n *NoopEventSink) PostUpdated(ctx context.Context, post *Post) error { return nil }

func (n *NoopEventSink) PostDeleted(ctx context.Context, slug string) error { return nil }

func (n *NoopEventSink) BlobOrphaned(ctx context.Context, orphan Orphan) error { return nil }

// LogEventSink writes every event to a slog logger. Orphans are logged at
// warn level so they can be reclaimed by hand.
type LogEventSink struct {
	logger *slog.Logger
}

// NewLogEventSink creates a sink logging to logger, or slog.Default when nil.
func NewLogEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventSink{logger: logger}
}

func (l *LogEventSink) PostCreated(ctx context.Context, post *Post) error {
	l.logger.InfoContext(ctx, "Post created", "slug", post.Slug, "author_id", post.AuthorID, "status", post.Status)
	return nil
}

func (l *LogEventSink) PostUpdated(ctx context.Context, post *Post) error {
	l.logger.InfoContext(ctx, "Post updated", "slug", post.Slug, "status", post.Status)
	return nil
}

func (l *LogEventSink) PostDeleted(ctx context.Context, slug string) error {
	l.logger.InfoContext(ctx, "Post deleted", "slug", slug)
	return nil
}

func (l *LogEventSink) BlobOrphaned(ctx context.Context, orphan Orphan) error {
	attrs := []any{
		"bucket_id", orphan.BucketID,
		"file_id", orphan.FileID,
		"slug", orphan.Slug,
		"reason", string(orphan.Reason),
	}
	if orphan.Err != nil {
		attrs = append(attrs, "error", orphan.Err)
	}
	l.logger.WarnContext(ctx, "Blob orphaned", attrs...)
	return nil
}

// notifier fans events out to a sink and logs sink failures.
type notifier struct {
	sink   EventSink
	logger *slog.Logger
}

func (n notifier) created(ctx context.Context, post *Post) {
	if n.sink == nil {
		return
	}
	if err := n.sink.PostCreated(ctx, post); err != nil {
		n.logger.Warn("Event sink failed", "event", "post_created", "slug", post.Slug, "error", err)
	}
}

func (n notifier) updated(ctx context.Context, post *Post) {
	if n.sink == nil {
		return
	}
	if err := n.sink.PostUpdated(ctx, post); err != nil {
		n.logger.Warn("Event sink failed", "event", "post_updated", "slug", post.Slug, "error", err)
	}
}

func (n notifier) deleted(ctx context.Context, slug string) {
	if n.sink == nil {
		return
	}
	if err := n.sink.PostDeleted(ctx, slug); err != nil {
		n.logger.Warn("Event sink failed", "event", "post_deleted", "slug", slug, "error", err)
	}
}

func (n notifier) orphaned(ctx context.Context, orphan Orphan) {
	n.logger.Warn("Blob left without a post", "file_id", orphan.FileID, "slug", orphan.Slug, "reason", string(orphan.Reason), "error", orphan.Err)
	if n.sink == nil {
		return
	}
	if err := n.sink.BlobOrphaned(ctx, orphan); err != nil {
		n.logger.Warn("Event sink failed", "event", "blob_orphaned", "file_id", orphan.FileID, "error", err)
	}
}
