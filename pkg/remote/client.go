// Package remote downloads epoch images from the data repository on GitHub.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config locates the remote data folder.
type Config struct {
	// BaseURL is the GitHub API root; empty means https://api.github.com.
	BaseURL   string
	Owner     string
	Repo      string
	Branch    string
	Path      string
	Suffix    string
	UserAgent string
	Timeout   time.Duration
	// Attempts bounds tries per request; only 5xx and transport errors are
	// retried.
	Attempts int
	// Backoff is the wait before retry n, multiplied by n.
	Backoff time.Duration
}

// DefaultConfig points at the orion-jets-data repository.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://api.github.com",
		Owner:     "unam-irya-will-henney",
		Repo:      "orion-jets-data",
		Branch:    "main",
		Path:      "data",
		Suffix:    ".fits",
		UserAgent: "orion-jets-fetch-data",
		Timeout:   60 * time.Second,
		Attempts:  3,
		Backoff:   time.Second,
	}
}

// File is one downloadable entry of the remote folder.
type File struct {
	Name string
	URL  string
}

// StatusError reports a non-200 HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	kind := "server"
	if e.Code < 500 {
		kind = "client"
	}
	return fmt.Sprintf("%s error: status code %d from %s", kind, e.Code, e.URL)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool { return e.Code >= 500 }

// Client talks to the GitHub contents API.
type Client struct {
	cfg  Config
	http *http.Client
	log  logrus.FieldLogger
}

// NewClient returns a Client for cfg. log may be nil.
func NewClient(cfg Config, log logrus.FieldLogger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Suffix == "" {
		cfg.Suffix = def.Suffix
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		log: log,
	}
}

// ContentsURL is the API address of the configured folder listing.
func (c *Client) ContentsURL() string {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		strings.TrimRight(c.cfg.BaseURL, "/"),
		url.PathEscape(c.cfg.Owner), url.PathEscape(c.cfg.Repo),
		strings.Trim(c.cfg.Path, "/"))
	if c.cfg.Branch != "" {
		u += "?ref=" + url.QueryEscape(c.cfg.Branch)
	}
	return u
}

type contentEntry struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
}

// ListFITS returns the files of the remote folder whose names end in the
// configured suffix, ignoring case. Directories and entries without a
// download URL are left out.
func (c *Client) ListFITS(ctx context.Context) ([]File, error) {
	resp, err := c.get(ctx, c.ContentsURL(), "application/vnd.github.v3+json")
	if err != nil {
		return nil, fmt.Errorf("remote: listing %s/%s: %w", c.cfg.Owner, c.cfg.Repo, err)
	}
	defer resp.Body.Close()

	var entries []contentEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("remote: decoding listing: %w", err)
	}

	suffix := strings.ToLower(c.cfg.Suffix)
	var files []File
	for _, e := range entries {
		if e.Type != "file" || e.Name == "" || e.DownloadURL == "" {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name), suffix) {
			continue
		}
		files = append(files, File{Name: e.Name, URL: e.DownloadURL})
	}
	c.log.WithField("count", len(files)).Debug("listed remote files")
	return files, nil
}

// Download fetches src into dest, creating parent directories. The body is
// written to a temporary file in the same directory and renamed into place,
// so dest never holds a partial download.
func (c *Client) Download(ctx context.Context, src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("remote: %w", err)
	}

	resp, err := c.get(ctx, src, "*/*")
	if err != nil {
		return fmt.Errorf("remote: downloading %s: %w", src, err)
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("remote: writing %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("remote: %w", err)
	}

	c.log.WithFields(logrus.Fields{"file": dest, "bytes": n}).Debug("downloaded")
	return nil
}

// get performs a GET with up to cfg.Attempts tries. Server errors and
// transport failures are retried; client errors return at once.
func (c *Client) get(ctx context.Context, target, accept string) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		req.Header.Set("Accept", accept)

		resp, err := c.http.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		if err == nil {
			resp.Body.Close()
			se := &StatusError{URL: target, Code: resp.StatusCode}
			if !se.Retryable() {
				return nil, se
			}
			err = se
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		if attempt < c.cfg.Attempts {
			c.log.WithFields(logrus.Fields{"url": target, "attempt": attempt}).WithError(err).Debug("retrying")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.cfg.Backoff):
			}
		}
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", c.cfg.Attempts, lastErr)
}
