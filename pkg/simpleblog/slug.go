package simpleblog

import "strings"

// NormalizeSlug maps arbitrary text to a URL-safe slug: trimmed, lower-cased,
// every run of characters outside [a-z0-9] replaced by a single hyphen, and
// no leading or trailing hyphen. NormalizeSlug(NormalizeSlug(s)) equals
// NormalizeSlug(s) for every s.
func NormalizeSlug(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))

	var b strings.Builder
	b.Grow(len(s))
	gap := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			if gap && b.Len() > 0 {
				b.WriteByte('-')
			}
			gap = false
			b.WriteByte(c)
			continue
		}
		gap = true
	}
	return b.String()
}

// ValidSlug reports whether s is a non-empty slug already in normalized form.
func ValidSlug(s string) bool {
	return s != "" && NormalizeSlug(s) == s
}

// SlugField tracks the slug input of a post form. Until the user edits the
// slug, every title change regenerates it; once edited, the slug is kept but
// still normalized on each change. Clearing the slug hands control back to
// the title.
type SlugField struct {
	value     string
	finalized bool
}

// NewSlugField starts a field from an existing slug. A non-empty initial
// slug, as when editing a saved post, counts as finalized.
func NewSlugField(initial string) *SlugField {
	v := NormalizeSlug(initial)
	return &SlugField{value: v, finalized: v != ""}
}

// TitleChanged regenerates the slug from title unless the user owns it.
func (f *SlugField) TitleChanged(title string) {
	if f.finalized {
		return
	}
	f.value = NormalizeSlug(title)
}

// Edit records a user edit of the slug input.
func (f *SlugField) Edit(input string) {
	f.value = NormalizeSlug(input)
	f.finalized = f.value != ""
}

// Value returns the current slug.
func (f *SlugField) Value() string {
	return f.value
}

// Finalized reports whether the user has taken over the slug.
func (f *SlugField) Finalized() bool {
	return f.finalized
}
