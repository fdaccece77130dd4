// Package simpleblog provides the post-authoring core of a blog backed by
// three external services: a document store, a blob store and an identity
// service.
//
// A Blog bundles the Post Repository (document CRUD keyed by slug), the
// Media Resolver (preview/view URLs with an error-driven fallback), the
// Authoring workflow (upload-then-write orchestration across the document
// and blob stores) and the Session Gateway. Concrete stores live under
// subpackages: docstore (memory, Postgres, SQLite), blobstore (memory,
// filesystem, S3) and identity (memory, Postgres).
//
// Failure signaling
//
// Creating a post is the only operation that returns a Go error
// (*CreationError). Every other repository operation returns a Result, whose
// FailureKind tells the caller why the value is missing. Callers branch on
// Result.OK, never on a zero value.
//
// Document and blob consistency
//
// There is no transaction spanning both stores. Images are uploaded before
// the document write; a failed write leaves the upload orphaned, reported
// through EventSink.BlobOrphaned and the log but never deleted
// automatically. Blobs replaced or released by an update or delete are
// reclaimed best effort after the document change is confirmed.
package simpleblog
