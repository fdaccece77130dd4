package simpleblog

import (
	"time"
)

// PostStatus is the publish state of a post.
type PostStatus string

// Post status constants (typed).
const (
	PostStatusActive   PostStatus = "active"
	PostStatusInactive PostStatus = "inactive"
	PostStatusDraft    PostStatus = "draft"
)

// Valid reports whether s is one of the known post states.
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusActive, PostStatusInactive, PostStatusDraft:
		return true
	default:
		return false
	}
}

// Post is a blog post document. Slug doubles as the document key and never
// changes after creation. CreatedAt and UpdatedAt are owned by the document
// store.
type Post struct {
	Slug          string     `json:"slug"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	FeaturedImage string     `json:"featured_image,omitempty"`
	Status        PostStatus `json:"status"`
	AuthorID      string     `json:"author_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Fields is the attribute payload of a document.
type Fields map[string]any

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the string value stored under key, or "" when the key is
// missing or holds another type.
func (f Fields) String(key string) string {
	if v, ok := f[key].(string); ok {
		return v
	}
	return ""
}

// Document is a record in a document store collection.
type Document struct {
	ID           string    `json:"id"`
	DatabaseID   string    `json:"database_id"`
	CollectionID string    `json:"collection_id"`
	Data         Fields    `json:"data"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// QueryKind identifies the operation a Query performs.
type QueryKind int

const (
	QueryKindEqual QueryKind = iota
	QueryKindLimit
	QueryKindOffset
)

// Query is a single list constraint understood by every DocumentStore.
type Query struct {
	Kind  QueryKind
	Field string
	Value string
	N     int
}

// QueryEqual matches documents whose field equals value.
func QueryEqual(field, value string) Query {
	return Query{Kind: QueryKindEqual, Field: field, Value: value}
}

// QueryLimit caps the number of returned documents.
func QueryLimit(n int) Query {
	return Query{Kind: QueryKindLimit, N: n}
}

// QueryOffset skips the first n matching documents.
func QueryOffset(n int) Query {
	return Query{Kind: QueryKindOffset, N: n}
}

// QuerySet is the parsed form of a list of queries, ready for a backend to
// apply.
type QuerySet struct {
	Equal  []Query
	Limit  int
	Offset int
}

// ParseQueries folds queries into a QuerySet. Later limit and offset
// queries override earlier ones.
func ParseQueries(queries []Query) QuerySet {
	var qs QuerySet
	for _, q := range queries {
		switch q.Kind {
		case QueryKindEqual:
			qs.Equal = append(qs.Equal, q)
		case QueryKindLimit:
			qs.Limit = q.N
		case QueryKindOffset:
			qs.Offset = q.N
		}
	}
	return qs
}

// Matches reports whether data satisfies every equality filter in qs.
func (qs QuerySet) Matches(data Fields) bool {
	for _, q := range qs.Equal {
		if data.String(q.Field) != q.Value {
			return false
		}
	}
	return true
}

// Role is a permission grantee.
type Role string

// RoleAny grants to everyone, including anonymous visitors.
const RoleAny Role = "any"

// RoleUser grants to a single identity.
func RoleUser(id string) Role {
	return Role("user:" + id)
}

// Permission is an access grant on a file, e.g. read("any").
type Permission string

// PermissionRead grants read access to role.
func PermissionRead(role Role) Permission {
	return Permission(`read("` + string(role) + `")`)
}

// PublicRead is the permission that makes a file world-readable.
var PublicRead = PermissionRead(RoleAny)

// IsPublic reports whether perms contain PublicRead.
func IsPublic(perms []Permission) bool {
	for _, p := range perms {
		if p == PublicRead {
			return true
		}
	}
	return false
}

// File describes a blob stored in a bucket.
type File struct {
	ID          string       `json:"id"`
	BucketID    string       `json:"bucket_id"`
	Name        string       `json:"name"`
	MimeType    string       `json:"mime_type"`
	Size        int64        `json:"size"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
}

// FileParams carries the attributes of a new file.
type FileParams struct {
	Name        string
	MimeType    string
	Size        int64
	Permissions []Permission
}

// FileUpdate is the options-shaped permission update. A nil Name leaves the
// name unchanged; Permissions replaces the permission set when non-nil.
type FileUpdate struct {
	Name        *string
	Permissions []Permission
}

// PreviewOptions controls the transformation applied by a preview URL.
type PreviewOptions struct {
	Width   int
	Height  int
	Gravity string
	Quality int
}

// DefaultPreviewOptions returns the 1200x1200, center, quality 80 preview
// used for featured images.
func DefaultPreviewOptions() PreviewOptions {
	return PreviewOptions{
		Width:   1200,
		Height:  1200,
		Gravity: "center",
		Quality: 80,
	}
}

// Identity is an account known to the identity service.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is an authenticated session for an identity.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Credentials are email and password login credentials.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupInput is the input to account creation.
type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}
