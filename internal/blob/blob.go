// Package blob dereferences recording URLs into bytes and a MIME type.
package blob

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/windfall/uwu_classroom/internal/errors"
)

// Blob is a fetched recording.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Fetcher reads the blob behind a reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (*Blob, error)
}

// ObjectGetter reads one object from a bucket. Implemented by client.R2Client and client.GCSClient.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, string, error)
}

// Router dispatches a reference to a source by its scheme: file:// or a bare path, http(s)://,
// r2://bucket/key and gs://bucket/object.
type Router struct {
	httpClient *http.Client
	r2         ObjectGetter
	gcs        ObjectGetter
}

// Option configures a Router.
type Option func(*Router)

// WithHTTPClient sets the client used for http(s) references.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Router) {
		if hc != nil {
			r.httpClient = hc
		}
	}
}

// WithR2 enables r2:// references.
func WithR2(getter ObjectGetter) Option {
	return func(r *Router) {
		r.r2 = getter
	}
}

// WithGCS enables gs:// references.
func WithGCS(getter ObjectGetter) Option {
	return func(r *Router) {
		r.gcs = getter
	}
}

// NewRouter creates a Router. Local files and http(s) are always enabled.
func NewRouter(opts ...Option) *Router {
	r := &Router{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, ref string) (*Blob, error) {
	if ref == "" {
		return nil, errors.Validation("no recording to analyze")
	}

	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || isWindowsDrive(u.Scheme) {
		return readFile(ref)
	}

	switch u.Scheme {
	case "file":
		return readFile(u.Path)
	case "http", "https":
		return r.fetchHTTP(ctx, ref)
	case "r2":
		if r.r2 == nil {
			return nil, errors.Configuration("r2:// recordings need Cloudflare R2 credentials")
		}
		return fetchObject(ctx, r.r2, u)
	case "gs":
		if r.gcs == nil {
			return nil, errors.Configuration("gs:// recordings need GCS_ENABLED=true")
		}
		return fetchObject(ctx, r.gcs, u)
	default:
		return nil, errors.Validation(fmt.Sprintf("unsupported recording scheme %q", u.Scheme))
	}
}

func isWindowsDrive(scheme string) bool {
	return len(scheme) == 1
}

func readFile(path string) (*Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("recording " + path)
		}
		return nil, errors.Wrap(errors.ErrStorageService, "failed to read recording", err)
	}
	return &Blob{Data: data, MIMEType: detectMIME(path, "", data)}, nil
}

func (r *Router) fetchHTTP(ctx context.Context, ref string) (*Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, errors.Validation(fmt.Sprintf("invalid recording url: %v", err))
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorageService, "failed to download recording", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrStorageService, fmt.Sprintf("recording download returned status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorageService, "failed to read recording", err)
	}
	return &Blob{Data: data, MIMEType: detectMIME(req.URL.Path, resp.Header.Get("Content-Type"), data)}, nil
}

func fetchObject(ctx context.Context, getter ObjectGetter, u *url.URL) (*Blob, error) {
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return nil, errors.Validation(fmt.Sprintf("%s://%s has no object key", u.Scheme, u.Host))
	}
	data, contentType, err := getter.GetObject(ctx, u.Host, key)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorageService, "failed to fetch recording", err)
	}
	return &Blob{Data: data, MIMEType: detectMIME(key, contentType, data)}, nil
}

// detectMIME prefers the declared type, then the file extension, then content sniffing.
func detectMIME(name, declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" && declared != "binary/octet-stream" {
		return declared
	}
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		if t, ok := audioTypes[ext]; ok {
			return t
		}
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return http.DetectContentType(data)
}

// mime.TypeByExtension depends on the host's mime tables, which rarely know these.
var audioTypes = map[string]string{
	".webm": "audio/webm",
	".mp4":  "audio/mp4",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".mp3":  "audio/mpeg",
}
