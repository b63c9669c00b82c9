package sheet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "regattacal/internal/log"
)

const (
	// UserAgent identifies the service to the spreadsheet host.
	UserAgent = "regattacal/1.0 (+https://www.strangfordloughregattas.co.uk)"
	// DefaultTimeout bounds a single fetch when none is configured.
	DefaultTimeout = 10 * time.Second
)

// maxBodyBytes caps a sheet export. A larger body is an error rather than a
// silently truncated CSV.
var maxBodyBytes int64 = 32 << 20

// ErrTransport is wrapped by every error caused by the network or by the
// remote end: connection failures, timeouts and non-2xx responses.
var ErrTransport = errors.New("sheet transport failed")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sheet transport failed: %s returned %s", appLog.RedactURL(e.URL), e.Status)
}

func (e *StatusError) Unwrap() error {
	return ErrTransport
}

// Source is a single CSV endpoint.
type Source struct {
	// ID is an internal identifier used in logs.
	ID string
	// URL is the CSV endpoint.
	URL string
}

// Result is the outcome of fetching a Source.
type Result struct {
	Source    Source
	Body      []byte
	FromCache bool // true when a 304 let us reuse the cached body
	FetchedAt time.Time
}

// cacheEntry holds HTTP validators for one URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads spreadsheet CSV with conditional requests against a disk
// cache. It never retries and never substitutes cached data for a failed
// request; the caller decides what to do with ErrTransport.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	timeout  time.Duration
	// Base is the origin used for tab discovery. Defaults to DocsBase.
	Base string
}

// NewFetcher creates a Fetcher. An empty cacheDir disables the disk cache and
// a non-positive timeout selects DefaultTimeout.
func NewFetcher(cacheDir string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		client:   &http.Client{},
		cacheDir: cacheDir,
		timeout:  timeout,
		Base:     DocsBase,
	}
}

// Timeout is the per-request bound.
func (f *Fetcher) Timeout() time.Duration {
	return f.timeout
}

// Fetch performs one GET of src.URL bounded by the fetch timeout.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (Result, error) {
	if src.URL == "" {
		return Result{}, errors.New("source URL is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var (
		cachePath  string
		meta       cacheEntry
		cachedBody []byte
	)
	if f.cacheDir != "" {
		cachePath = f.cachePathForURL(src.URL)
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			appLog.Error("sheet cache dir unavailable", err, "path", cachePath)
			cachePath = ""
		} else {
			meta, _ = loadCacheMeta(cachePath)
			cachedBody, _ = os.ReadFile(filepath.Join(cachePath, "body.csv"))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.1")

	// Only revalidate when there is a body to fall back on.
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Info("sheet fetch start", "id", src.ID, "url", appLog.RedactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrTransport, appLog.RedactURL(src.URL), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && len(cachedBody) > 0:
		appLog.Info("sheet fetch not modified; using cache", "id", src.ID, "url", appLog.RedactURL(src.URL))
		return Result{Source: src, Body: cachedBody, FromCache: true, FetchedAt: time.Now().UTC()}, nil

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Result{}, &StatusError{URL: src.URL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return Result{}, fmt.Errorf("%w: reading body: %w", ErrTransport, err)
	}
	if int64(len(body)) > maxBodyBytes {
		return Result{}, fmt.Errorf("%w: %s: body exceeds %d bytes", ErrTransport, appLog.RedactURL(src.URL), maxBodyBytes)
	}

	if cachePath != "" {
		entry := cacheEntry{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(cachePath, entry, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("sheet cache save failed", err, "id", src.ID, "url", appLog.RedactURL(src.URL))
		}
	}

	appLog.Info("sheet fetch success", "id", src.ID, "url", appLog.RedactURL(src.URL), "status", resp.StatusCode, "bytes", len(body))

	return Result{Source: src, Body: body, FetchedAt: time.Now().UTC()}, nil
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	// First 16 hex chars as directory name.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

// saveCache replaces body.csv then meta.json, each through a rename, so a
// concurrent reader never sees a partly written file.
func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	if err := writeFileAtomic(filepath.Join(cachePath, "body.csv"), body); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(cachePath, "meta.json"), data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
