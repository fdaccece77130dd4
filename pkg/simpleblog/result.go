package simpleblog

import "fmt"

// FailureKind classifies why a Result carries no value.
type FailureKind int

const (
	KindNone FailureKind = iota
	KindNotFound
	KindInvalid
	KindUpload
	KindStore
)

func (k FailureKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	case KindUpload:
		return "upload"
	case KindStore:
		return "store"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is either a value or a failure of a known kind.
type Result[T any] struct {
	value T
	kind  FailureKind
	err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail builds a failed Result. A KindNone kind is promoted to KindStore so a
// failure can never read as success.
func Fail[T any](kind FailureKind, err error) Result[T] {
	if kind == KindNone {
		kind = KindStore
	}
	return Result[T]{kind: kind, err: err}
}

// OK reports whether the result holds a value.
func (r Result[T]) OK() bool {
	return r.kind == KindNone
}

// Value returns the held value, or the zero value on failure.
func (r Result[T]) Value() T {
	return r.value
}

// Kind returns the failure kind, KindNone on success.
func (r Result[T]) Kind() FailureKind {
	return r.kind
}

// Err returns the failure cause, nil on success.
func (r Result[T]) Err() error {
	if r.OK() {
		return nil
	}
	if r.err == nil {
		return fmt.Errorf("%s failure", r.kind)
	}
	return r.err
}

// Unwrap converts the result to the conventional value, error pair.
func (r Result[T]) Unwrap() (T, error) {
	return r.value, r.Err()
}
