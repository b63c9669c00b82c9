package sheet

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFetch_oversizedBodyIsTransportError(t *testing.T) {
	old := maxBodyBytes
	maxBodyBytes = 16
	t.Cleanup(func() { maxBodyBytes = old })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 17)))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := NewFetcher(dir, time.Second)
	_, err := f.Fetch(context.Background(), Source{URL: srv.URL + "/big.csv"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTransport))
	require.Contains(t, err.Error(), "exceeds 16 bytes")

	// Nothing truncated reaches the cache.
	_, statErr := os.Stat(filepath.Join(f.cachePathForURL(srv.URL+"/big.csv"), "body.csv"))
	require.True(t, os.IsNotExist(statErr))
}

func TestFetch_bodyAtLimitIsAccepted(t *testing.T) {
	old := maxBodyBytes
	maxBodyBytes = 16
	t.Cleanup(func() { maxBodyBytes = old })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 16)))
	}))
	defer srv.Close()

	res, err := NewFetcher("", time.Second).Fetch(context.Background(), Source{URL: srv.URL})
	require.NoError(t, err)
	require.Len(t, res.Body, 16)
}

func TestSaveCache_replacesFilesWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, saveCache(dir, cacheEntry{URL: "https://example.com/a.csv", ETag: `"v1"`}, []byte("first")))
	require.NoError(t, saveCache(dir, cacheEntry{URL: "https://example.com/a.csv", ETag: `"v2"`}, []byte("second")))

	body, err := os.ReadFile(filepath.Join(dir, "body.csv"))
	require.NoError(t, err)
	require.Equal(t, "second", string(body))

	meta, err := loadCacheMeta(dir)
	require.NoError(t, err)
	require.Equal(t, `"v2"`, meta.ETag)
	require.False(t, meta.UpdatedAt.IsZero())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{"body.csv", "meta.json"}, names)
}
