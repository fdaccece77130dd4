package simpleblog

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrPostNotFound indicates a post was not found
	ErrPostNotFound = errors.New("post not found")

	// ErrInvalidSlug indicates a slug is empty or not in normalized form
	ErrInvalidSlug = errors.New("invalid slug")

	// ErrInvalidStatus indicates an unknown post status
	ErrInvalidStatus = errors.New("invalid post status")

	// ErrUploadFailed indicates an image upload failed
	ErrUploadFailed = errors.New("upload failed")

	// ErrDocumentNotFound indicates a document store miss
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDocumentExists indicates a document ID collision
	ErrDocumentExists = errors.New("document already exists")

	// ErrFileNotFound indicates a blob store miss
	ErrFileNotFound = errors.New("file not found")

	// ErrFileExists indicates a file ID collision
	ErrFileExists = errors.New("file already exists")

	// ErrAlreadyPublic indicates a file already grants public read
	ErrAlreadyPublic = errors.New("file is already public")

	// ErrUnsupported indicates a backend does not implement an operation
	ErrUnsupported = errors.New("operation not supported")

	// ErrAccountExists indicates an email is already registered
	ErrAccountExists = errors.New("account already exists")

	// ErrInvalidCredentials indicates a failed login
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidAccount indicates signup input was rejected
	ErrInvalidAccount = errors.New("invalid account")

	// ErrSessionNotFound indicates a missing or expired session
	ErrSessionNotFound = errors.New("session not found")
)

// CreationError is returned when a post could not be created. Its message is
// normalized for display; the underlying cause stays reachable through
// errors.Is and errors.As.
type CreationError struct {
	Slug string
	Err  error
}

func (e *CreationError) Error() string {
	return "failed to create post"
}

func (e *CreationError) Unwrap() error {
	return e.Err
}

// Conflict reports whether the creation failed because the slug is taken.
func (e *CreationError) Conflict() bool {
	return errors.Is(e.Err, ErrDocumentExists)
}

// StoreError represents a failed call to one of the external stores
type StoreError struct {
	Store string
	Op    string
	Key   string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s operation %s failed for key %s: %v", e.Store, e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
