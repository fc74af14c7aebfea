// Package objstore fetches and stores media objects addressed by gs://,
// http(s):// or local paths. Cloud Storage goes through the official client
// with Application Default Credentials unless a static token is given.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// DefaultGCSEndpoint is the public Cloud Storage API root.
const DefaultGCSEndpoint = "https://storage.googleapis.com"

var (
	// ErrUnsupported is returned for URLs with an unknown scheme.
	ErrUnsupported = errors.New("objstore: unsupported url")
	// ErrNotFound is returned when a gs:// object does not exist.
	ErrNotFound = errors.New("objstore: object not found")
)

// Store moves objects between remote storage and the local filesystem.
type Store struct {
	endpoint string
	token    string
	extra    []option.ClientOption
	hc       *http.Client

	gcsOnce sync.Once
	gcs     *storage.Client
	gcsErr  error
}

// Option configures a Store.
type Option func(*Store)

// WithEndpoint points the Cloud Storage client at another API root, such as
// an emulator.
func WithEndpoint(u string) Option { return func(s *Store) { s.endpoint = strings.TrimRight(u, "/") } }

// WithToken authenticates Cloud Storage with a fixed OAuth access token
// instead of Application Default Credentials.
func WithToken(tok string) Option { return func(s *Store) { s.token = tok } }

// WithClientOptions passes extra options to the Cloud Storage client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *Store) { s.extra = append(s.extra, opts...) }
}

// WithHTTPClient replaces the traced client used for http(s) downloads.
func WithHTTPClient(hc *http.Client) Option { return func(s *Store) { s.hc = hc } }

// New returns a Store. The Cloud Storage client is created on first use.
func New(opts ...Option) *Store {
	s := &Store{
		hc: &http.Client{
			Timeout:   30 * time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close releases the Cloud Storage client, if one was created.
func (s *Store) Close() error {
	if s.gcs == nil {
		return nil
	}
	return s.gcs.Close()
}

func (s *Store) client(ctx context.Context) (*storage.Client, error) {
	s.gcsOnce.Do(func() {
		opts := []option.ClientOption{storage.WithJSONReads()}
		if s.endpoint != "" && s.endpoint != DefaultGCSEndpoint {
			opts = append(opts, option.WithEndpoint(s.endpoint+"/storage/v1/"))
		}
		if s.token != "" {
			opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: s.token})))
		}
		opts = append(opts, s.extra...)
		s.gcs, s.gcsErr = storage.NewClient(ctx, opts...)
		if s.gcsErr != nil {
			s.gcsErr = fmt.Errorf("objstore: storage client: %w", s.gcsErr)
		}
	})
	return s.gcs, s.gcsErr
}

// ParseGS splits gs://bucket/object.
func ParseGS(u string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(u, "gs://")
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupported, u)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("objstore: malformed gs url %q", u)
	}
	return bucket, object, nil
}

// Download copies the object at src into dir and returns the local path.
// Local paths are returned unchanged when they exist.
func (s *Store) Download(ctx context.Context, src, dir string) (string, error) {
	switch {
	case strings.HasPrefix(src, "gs://"):
		return s.downloadGS(ctx, src, dir)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		pu, err := url.Parse(src)
		if err != nil {
			return "", fmt.Errorf("objstore: parse %s: %w", src, err)
		}
		return s.fetch(ctx, src, filepath.Join(dir, path.Base(pu.Path)))
	case strings.Contains(src, "://"):
		return "", fmt.Errorf("%w: %s", ErrUnsupported, src)
	default:
		if _, err := os.Stat(src); err != nil {
			return "", fmt.Errorf("objstore: local source: %w", err)
		}
		return src, nil
	}
}

func (s *Store) downloadGS(ctx context.Context, src, dir string) (string, error) {
	bucket, object, err := ParseGS(src)
	if err != nil {
		return "", err
	}
	c, err := s.client(ctx)
	if err != nil {
		return "", err
	}
	rc, err := c.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, src)
	}
	if err != nil {
		return "", fmt.Errorf("objstore: download %s: %w", src, err)
	}
	defer rc.Close()
	return writeFile(filepath.Join(dir, path.Base(object)), rc)
}

func (s *Store) fetch(ctx context.Context, u, dst string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("objstore: new request: %w", err)
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("objstore: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("objstore: download http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return writeFile(dst, resp.Body)
}

// writeFile copies r into dst through a temporary sibling so a failed copy
// leaves nothing at dst.
func writeFile(dst string, r io.Reader) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("objstore: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".dl-*")
	if err != nil {
		return "", fmt.Errorf("objstore: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("objstore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("objstore: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("objstore: rename: %w", err)
	}
	return dst, nil
}

// Upload stores the local file at src under the gs:// URL dst.
func (s *Store) Upload(ctx context.Context, src, dst string) error {
	bucket, object, err := ParseGS(dst)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("objstore: upload: %w", err)
	}
	defer f.Close()

	c, err := s.client(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := c.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType(src)
	if _, err := io.Copy(w, f); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("objstore: upload %s: %w", dst, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("objstore: upload %s: %w", dst, err)
	}
	return nil
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".jsonl":
		return "application/jsonl"
	case ".json":
		return "application/json"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
