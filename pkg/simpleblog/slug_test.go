package simpleblog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

func TestNormalizeSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My First Post!!", "my-first-post"},
		{"  ---Hello_World---  ", "hello-world"},
		{"already-a-slug", "already-a-slug"},
		{"Go 1.24 Released", "go-1-24-released"},
		{"Ünïcödé café", "n-c-d-caf"},
		{"a   b\t\nc", "a-b-c"},
		{"!!!", ""},
		{"", ""},
		{"UPPER", "upper"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := simpleblog.NormalizeSlug(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, simpleblog.NormalizeSlug(got), "normalizing twice changes nothing")
		})
	}
}

func TestValidSlug(t *testing.T) {
	assert.True(t, simpleblog.ValidSlug("hello-world"))
	assert.False(t, simpleblog.ValidSlug(""))
	assert.False(t, simpleblog.ValidSlug("Hello"))
	assert.False(t, simpleblog.ValidSlug("-hello"))
	assert.False(t, simpleblog.ValidSlug("a--b"))
}

func TestSlugField(t *testing.T) {
	t.Run("follows the title until edited", func(t *testing.T) {
		f := simpleblog.NewSlugField("")
		f.TitleChanged("Hello World")
		assert.Equal(t, "hello-world", f.Value())
		assert.False(t, f.Finalized())

		f.Edit("Custom Slug")
		assert.Equal(t, "custom-slug", f.Value())
		assert.True(t, f.Finalized())

		f.TitleChanged("Another Title")
		assert.Equal(t, "custom-slug", f.Value())
	})

	t.Run("clearing hands control back to the title", func(t *testing.T) {
		f := simpleblog.NewSlugField("")
		f.Edit("mine")
		f.Edit("")
		assert.False(t, f.Finalized())

		f.TitleChanged("From Title")
		assert.Equal(t, "from-title", f.Value())
	})

	t.Run("existing slug is finalized", func(t *testing.T) {
		f := simpleblog.NewSlugField("saved-post")
		assert.True(t, f.Finalized())
		f.TitleChanged("Renamed")
		assert.Equal(t, "saved-post", f.Value())
	})
}

func FuzzNormalizeSlug(f *testing.F) {
	for _, seed := range []string{"My First Post!!", "  ---Hello_World---  ", "a--b", "İstanbul", "\t\n", "x"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		out := simpleblog.NormalizeSlug(in)
		assert.True(t, out == "" || simpleblog.ValidSlug(out), "%q -> %q", in, out)
		assert.Regexp(t, `^([a-z0-9]+(-[a-z0-9]+)*)?$`, out)
		assert.Equal(t, out, simpleblog.NormalizeSlug(out))
	})
}
