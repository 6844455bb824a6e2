package document

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/fyerfyer/clause-rag/pkg/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newDocServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/policy.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("policy body"))
	})
	mux.HandleFunc("/handbook.md", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# Handbook\n\nLeave rules"))
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("served without extension"))
	})
	mux.HandleFunc("/blob", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0, 1, 2})
	})
	mux.HandleFunc("/archive.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("PK"))
	})
	mux.HandleFunc("/broken.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("definitely not a pdf"))
	})
	mux.HandleFunc("/missing.pdf", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

type stubParser struct {
	text string
}

func (s *stubParser) Parse(string) (string, error) { return s.text, nil }

func (s *stubParser) ParseReader(io.Reader, string) (string, error) { return s.text, nil }

func TestLoaderLoad(t *testing.T) {
	server := newDocServer(t)
	ctx := context.Background()

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: dir})
	require.NoError(t, err)
	loader := NewLoader(store, WithLogger(quietLogger()))

	t.Run("concatenates documents in order", func(t *testing.T) {
		text, err := loader.Load(ctx, []string{
			server.URL + "/policy.txt?sig=abc",
			server.URL + "/handbook.md",
		})
		require.NoError(t, err)
		assert.Equal(t, "\n\npolicy body\n\nHandbook\n\nLeave rules", text)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "staged files should be removed")
	})

	t.Run("falls back to response content type", func(t *testing.T) {
		text, err := loader.Load(ctx, []string{server.URL + "/download"})
		require.NoError(t, err)
		assert.Equal(t, "\n\nserved without extension", text)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := loader.Load(ctx, []string{server.URL + "/archive.zip"})
		assert.ErrorIs(t, err, ErrUnsupportedFormat)

		_, err = loader.Load(ctx, []string{server.URL + "/blob"})
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
		assert.Contains(t, err.Error(), server.URL+"/blob")
	})

	t.Run("download failure", func(t *testing.T) {
		_, err := loader.Load(ctx, []string{server.URL + "/policy.txt", server.URL + "/missing.pdf"})
		var fetchErr *FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
		assert.Contains(t, fetchErr.Error(), "missing.pdf")
	})

	t.Run("size limit", func(t *testing.T) {
		small := NewLoader(nil, WithMaxBytes(4), WithLogger(quietLogger()))
		_, err := small.Load(ctx, []string{server.URL + "/policy.txt"})
		var fetchErr *FetchError
		assert.True(t, errors.As(err, &fetchErr))
	})

	t.Run("no documents", func(t *testing.T) {
		text, err := loader.Load(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, text)
	})
}

func TestLoaderFallbackParser(t *testing.T) {
	server := newDocServer(t)
	ctx := context.Background()

	plain := NewLoader(nil, WithLogger(quietLogger()))
	_, err := plain.Load(ctx, []string{server.URL + "/broken.pdf"})
	require.Error(t, err)

	withFallback := NewLoader(nil, WithLogger(quietLogger()), WithFallbackParser(&stubParser{text: "ocr result"}))
	text, err := withFallback.Load(ctx, []string{server.URL + "/broken.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "\n\nocr result", text)
}

func TestLoaderLoadFiles(t *testing.T) {
	loader := NewLoader(nil, WithLogger(quietLogger()))
	a := createTempFile(t, []byte("first file"), ".txt")
	b := createTempFile(t, []byte("<p>second file</p>"), ".html")

	text, err := loader.LoadFiles(context.Background(), []string{a, b})
	require.NoError(t, err)
	assert.Equal(t, "\n\nfirst file\n\nsecond file", text)

	_, err = loader.LoadFiles(context.Background(), []string{strings.TrimSuffix(a, ".txt") + ".bin"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
