package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileFetcher_ReadsMarkdown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.md")
	require.NoError(t, os.WriteFile(path, []byte("# Guide\n\nHello."), 0644))

	f := NewFileFetcher()
	raw, err := f.Fetch(context.Background(), "file://"+path, FetchOptions{})
	require.NoError(t, err)

	assert.Equal(t, ContentKindMarkdown, raw.Kind)
	assert.Equal(t, "# Guide\n\nHello.", string(raw.Body))
	assert.Equal(t, 200, raw.StatusCode)
}

func TestFileFetcher_RejectsBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G', 0x00, 0x1a}, 0644))

	f := NewFileFetcher()
	_, err := f.Fetch(context.Background(), "file://"+path, FetchOptions{})
	require.Error(t, err)

	var unsupported *UnsupportedContentError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "binary file", unsupported.Reason)
}

func TestFileFetcher_MissingFile(t *testing.T) {
	f := NewFileFetcher()
	_, err := f.Fetch(context.Background(), "file:///nonexistent/doc.md", FetchOptions{})
	require.Error(t, err)

	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
}
