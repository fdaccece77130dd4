package simpleblog

import (
	"context"
	"io"
)

// DocumentStore is the structured-record store posts are kept in. Documents
// are addressed by database, collection and document ID. Implementations
// reject a duplicate document ID with ErrDocumentExists and report missing
// documents with ErrDocumentNotFound.
type DocumentStore interface {
	// CreateDocument stores a new document under documentID
	CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data Fields) (*Document, error)

	// UpdateDocument merges data into the stored document; keys absent from data are left unchanged
	UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, data Fields) (*Document, error)

	// DeleteDocument removes a document permanently
	DeleteDocument(ctx context.Context, databaseID, collectionID, documentID string) error

	// GetDocument fetches a single document
	GetDocument(ctx context.Context, databaseID, collectionID, documentID string) (*Document, error)

	// ListDocuments returns documents matching queries in creation order
	ListDocuments(ctx context.Context, databaseID, collectionID string, queries ...Query) ([]*Document, error)
}

// BlobStore is the binary file store featured images live in. Missing files
// are reported with ErrFileNotFound.
type BlobStore interface {
	// CreateFile uploads a new file under fileID
	CreateFile(ctx context.Context, bucketID, fileID string, reader io.Reader, params FileParams) (*File, error)

	// DeleteFile removes a file permanently
	DeleteFile(ctx context.Context, bucketID, fileID string) error

	// GetFilePreview returns a URL rendering a transformed copy of the file
	GetFilePreview(ctx context.Context, bucketID, fileID string, opts PreviewOptions) (string, error)

	// GetFileView returns a URL rendering the original file
	GetFileView(ctx context.Context, bucketID, fileID string) (string, error)

	// UpdateFile applies an options-shaped update to a file
	UpdateFile(ctx context.Context, bucketID, fileID string, update FileUpdate) error
}

// PermissionSetter is the positional permission-update shape some blob
// stores expose next to UpdateFile.
type PermissionSetter interface {
	SetFilePermissions(ctx context.Context, bucketID, fileID string, permissions []Permission) error
}

// FileReader is implemented by blob stores that can stream file contents
// back, which lets the HTTP layer serve view and preview URLs itself.
type FileReader interface {
	GetFile(ctx context.Context, bucketID, fileID string) (*File, error)
	ReadFile(ctx context.Context, bucketID, fileID string) (io.ReadCloser, *File, error)
}

// IdentityService manages accounts and their sessions.
type IdentityService interface {
	// CreateAccount registers a new account; an empty userID lets the service pick one
	CreateAccount(ctx context.Context, userID, email, password, name string) (*Identity, error)

	// CreateEmailPasswordSession starts a session for the matching account
	CreateEmailPasswordSession(ctx context.Context, email, password string) (*Session, error)

	// GetAccount returns the identity owning sessionID
	GetAccount(ctx context.Context, sessionID string) (*Identity, error)

	// DeleteSessions ends every session of the identity owning sessionID
	DeleteSessions(ctx context.Context, sessionID string) error
}

// EventSink receives post lifecycle notifications. Sink errors are logged
// and never fail the operation that fired them.
type EventSink interface {
	PostCreated(ctx context.Context, post *Post) error
	PostUpdated(ctx context.Context, post *Post) error
	PostDeleted(ctx context.Context, slug string) error
	BlobOrphaned(ctx context.Context, orphan Orphan) error
}

// OrphanReason explains why a blob was left without a referencing post.
type OrphanReason string

const (
	// OrphanCreateFailed marks an upload whose document write failed
	OrphanCreateFailed OrphanReason = "create_failed"
	// OrphanUpdateFailed marks a replacement upload whose document update failed
	OrphanUpdateFailed OrphanReason = "update_failed"
	// OrphanReplaceCleanupFailed marks a replaced image that could not be deleted
	OrphanReplaceCleanupFailed OrphanReason = "replace_cleanup_failed"
	// OrphanDeleteCleanupFailed marks the image of a deleted post that could not be deleted
	OrphanDeleteCleanupFailed OrphanReason = "delete_cleanup_failed"
)

// Orphan describes a blob that exists without a post referencing it.
type Orphan struct {
	BucketID string
	FileID   string
	Slug     string
	Reason   OrphanReason
	Err      error
}
