// ABOUTME: Resource fetcher for local paths, file:// and http(s):// URLs
// ABOUTME: Optionally caches remote resources on disk keyed by URL hash
package decode

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Resonate-Protocol/chime/pkg/audio"
	"github.com/sirupsen/logrus"
)

// DefaultFetchTimeout bounds an http(s) fetch made with the default client
const DefaultFetchTimeout = 30 * time.Second

var defaultHTTPClient = &http.Client{Timeout: DefaultFetchTimeout}

// Fetcher opens audio resources
type Fetcher struct {
	// Client is used for http(s) resources (default: a client with
	// DefaultFetchTimeout)
	Client *http.Client

	// CacheDir, when set, keeps a copy of every fetched URL
	CacheDir string
}

// DefaultFetcher streams remote resources without caching
var DefaultFetcher = &Fetcher{}

// Open opens and decodes a resource with the default fetcher
func Open(resource string) (Stream, error) {
	return DefaultFetcher.Open(resource)
}

// Open fetches the resource and decodes its header
func (f *Fetcher) Open(resource string) (Stream, error) {
	rc, err := f.Fetch(resource)
	if err != nil {
		return nil, err
	}

	stream, err := NewStream(rc)
	if err != nil {
		rc.Close()
		var ioErr *audio.IOError
		if errors.As(err, &ioErr) && ioErr.Resource == "" {
			ioErr.Resource = resource
		}
		return nil, err
	}
	return stream, nil
}

// Fetch returns the raw bytes of a resource
func (f *Fetcher) Fetch(resource string) (io.ReadCloser, error) {
	if resource == "" {
		return nil, &audio.IOError{Resource: resource, Op: "open", Err: errors.New("empty resource")}
	}

	u, err := url.Parse(resource)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain path (a single-letter scheme is a Windows drive)
		return openFile(resource, resource)
	}

	switch u.Scheme {
	case "file":
		return openFile(resource, u.Path)
	case "http", "https":
		if f.CacheDir != "" {
			return f.fetchCached(resource)
		}
		return f.fetchHTTP(resource)
	}

	return nil, &audio.IOError{Resource: resource, Op: "open", Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
}

func openFile(resource, path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &audio.IOError{Resource: resource, Op: "open", Err: err}
	}
	return file, nil
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return defaultHTTPClient
}

func (f *Fetcher) fetchHTTP(resource string) (io.ReadCloser, error) {
	resp, err := f.client().Get(resource)
	if err != nil {
		return nil, &audio.IOError{Resource: resource, Op: "fetch", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &audio.IOError{Resource: resource, Op: "fetch", Err: fmt.Errorf("HTTP %s", resp.Status)}
	}

	return resp.Body, nil
}

// fetchCached downloads the resource once into CacheDir and serves later
// requests from disk
func (f *Fetcher) fetchCached(resource string) (io.ReadCloser, error) {
	cachePath := f.CachePath(resource)

	if file, err := os.Open(cachePath); err == nil {
		logrus.WithFields(logrus.Fields{
			"function": "fetchCached",
			"resource": resource,
			"path":     cachePath,
		}).Debug("Resource cache hit")
		return file, nil
	}

	if err := os.MkdirAll(f.CacheDir, 0755); err != nil {
		return nil, &audio.IOError{Resource: resource, Op: "fetch", Err: fmt.Errorf("failed to create cache directory: %w", err)}
	}

	body, err := f.fetchHTTP(resource)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	// Write to a temp file first so a failed download never looks cached
	tmp, err := os.CreateTemp(f.CacheDir, "fetch-*")
	if err != nil {
		return nil, &audio.IOError{Resource: resource, Op: "fetch", Err: fmt.Errorf("failed to create cache file: %w", err)}
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, &audio.IOError{Resource: resource, Op: "fetch", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, &audio.IOError{Resource: resource, Op: "fetch", Err: err}
	}
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		os.Remove(tmp.Name())
		return nil, &audio.IOError{Resource: resource, Op: "fetch", Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"function": "fetchCached",
		"resource": resource,
		"path":     cachePath,
	}).Debug("Resource cached")

	return openFile(resource, cachePath)
}

// CachePath returns where a URL is cached
func (f *Fetcher) CachePath(resource string) string {
	hash := sha256.Sum256([]byte(resource))
	return filepath.Join(f.CacheDir, fmt.Sprintf("%x%s", hash[:8], extension(resource)))
}

// extension extracts the file extension from a URL
func extension(resource string) string {
	// Remove query string
	resource = strings.Split(resource, "?")[0]
	return filepath.Ext(resource)
}
