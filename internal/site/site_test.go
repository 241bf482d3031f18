package site

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func newTestSite(t *testing.T) (*Site, string) {
	t.Helper()
	root := t.TempDir()
	assert.NoError(t, os.MkdirAll(filepath.Join(root, "docs", "nested"), 0o755))
	assert.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello, world!"), 0o644))
	assert.NoError(t, os.WriteFile(filepath.Join(root, "docs", "read me.md"), []byte("# docs"), 0o644))
	assert.NoError(t, os.WriteFile(filepath.Join(root, "docs", "<b>.html"), []byte("x"), 0o644))

	s, err := New(root)
	assert.NoError(t, err)
	return s, root
}

func TestNew(t *testing.T) {
	t.Run("rejects a missing root", func(t *testing.T) {
		_, err := New(filepath.Join(t.TempDir(), "missing"))
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("rejects a file root", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		assert.NoError(t, os.WriteFile(file, nil, 0o644))
		_, err := New(file)
		assert.Error(t, err)
	})
}

func TestResolve(t *testing.T) {
	s, root := newTestSite(t)

	t.Run("root", func(t *testing.T) {
		e, err := s.Resolve("/")
		assert.NoError(t, err)
		assert.True(t, e.IsDir)
		assert.Equal(t, root, e.Path)
		assert.Equal(t, "/", e.URL)
	})

	t.Run("file", func(t *testing.T) {
		e, err := s.Resolve("/hello.txt")
		assert.NoError(t, err)
		assert.False(t, e.IsDir)
		assert.Equal(t, int64(len("hello, world!")), e.Size)
	})

	t.Run("escaped name", func(t *testing.T) {
		e, err := s.Resolve("/docs/read%20me.md")
		assert.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "docs", "read me.md"), e.Path)
	})

	t.Run("query string is ignored", func(t *testing.T) {
		e, err := s.Resolve("/hello.txt?download=1")
		assert.NoError(t, err)
		assert.Equal(t, "/hello.txt", e.URL)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := s.Resolve("/nope.txt")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("parent traversal", func(t *testing.T) {
		for _, target := range []string{"/../etc/passwd", "/docs/../../x", "/%2e%2e/x", "/a%00b"} {
			_, err := s.Resolve(target)
			assert.True(t, errors.Is(err, ErrOutsideRoot), "target %q", target)
		}
	})

	t.Run("bad escape", func(t *testing.T) {
		_, err := s.Resolve("/%zz")
		assert.Error(t, err)
		assert.False(t, errors.Is(err, ErrNotFound))
	})
}

func TestListing(t *testing.T) {
	s, root := newTestSite(t)

	files, err := s.Listing(filepath.Join(root, "docs"))
	assert.NoError(t, err)
	assert.Equal(t, []File{
		{Path: "/docs/%3Cb%3E.html", Name: "<b>.html"},
		{Path: "/docs/nested", Name: "nested", IsDir: true},
		{Path: "/docs/read%20me.md", Name: "read me.md"},
	}, files)

	_, err = s.Listing(filepath.Dir(root))
	assert.True(t, errors.Is(err, ErrOutsideRoot))
}

func TestRenderIndex(t *testing.T) {
	s, root := newTestSite(t)

	t.Run("root has no parent link", func(t *testing.T) {
		buf := &bytes.Buffer{}
		assert.NoError(t, s.RenderIndex(buf, root))
		assert.Contains(t, buf.String(), `href="/hello.txt"`)
		assert.Contains(t, buf.String(), "docs/")
		assert.NotContains(t, buf.String(), "../")
	})

	t.Run("subdirectory escapes names", func(t *testing.T) {
		buf := &bytes.Buffer{}
		assert.NoError(t, s.RenderIndex(buf, filepath.Join(root, "docs")))
		assert.Contains(t, buf.String(), "Index of /docs")
		assert.Contains(t, buf.String(), `href="/"`)
		assert.Contains(t, buf.String(), "&lt;b&gt;.html")
		assert.NotContains(t, buf.String(), "<b>.html")
	})

	t.Run("missing directory", func(t *testing.T) {
		err := s.RenderIndex(&bytes.Buffer{}, filepath.Join(root, "gone"))
		assert.Error(t, err)
	})
}

func TestContentType(t *testing.T) {
	assert.Contains(t, ContentType("index.html"), "text/html")
	assert.Equal(t, "application/octet-stream", ContentType("blob"))
}

func TestNotFoundPage(t *testing.T) {
	assert.Contains(t, string(NotFoundPage()), "Oops!")
}
