package eventstore

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/EHam1/very-professional-blog/internal/storage"
)

// Backend URL schemes understood by Open.
const (
	SchemeSQLite = "sqlite://"
	SchemeHTTP   = "http://"
	SchemeHTTPS  = "https://"
	SchemeS3     = "s3://"
	SchemeLocal  = "local://"
)

type openOptions struct {
	s3         storage.S3Config
	httpClient *http.Client
}

// OpenOption configures Open.
type OpenOption func(*openOptions)

// WithS3Config sets the S3 client configuration for s3:// URLs.
func WithS3Config(cfg storage.S3Config) OpenOption {
	return func(o *openOptions) {
		o.s3 = cfg
	}
}

// WithHTTPClient sets the client used by REST backends.
func WithHTTPClient(client *http.Client) OpenOption {
	return func(o *openOptions) {
		o.httpClient = client
	}
}

// IsREST reports whether url selects the REST backend.
func IsREST(url string) bool {
	return strings.HasPrefix(url, SchemeHTTP) || strings.HasPrefix(url, SchemeHTTPS)
}

// Configured reports whether url and key are enough to open a backend. REST
// backends need a key; the others ignore it.
func Configured(url, key string) bool {
	if url == "" {
		return false
	}
	if IsREST(url) {
		return key != ""
	}
	return true
}

// Open returns the backend selected by url's scheme:
//
//	sqlite://PATH           SQLite database file (":memory:" allowed)
//	http(s)://HOST          PostgREST-compatible API, authenticated with key
//	s3://BUCKET/PREFIX      compressed archive in S3
//	local://DIR             compressed archive on the local filesystem
//
// It returns ErrNotConfigured when url (or a REST key) is missing.
func Open(ctx context.Context, url, key, table string, opts ...OpenOption) (Store, error) {
	if !Configured(url, key) {
		return nil, ErrNotConfigured
	}

	o := openOptions{s3: storage.DefaultS3Config()}
	for _, opt := range opts {
		opt(&o)
	}

	switch {
	case strings.HasPrefix(url, SchemeSQLite):
		path := strings.TrimPrefix(url, SchemeSQLite)
		if path == "" {
			return nil, fmt.Errorf("eventstore: sqlite URL %q has no path", url)
		}
		return OpenSQLite(ctx, path, table)

	case IsREST(url):
		return NewRESTStore(url, key, table, o.httpClient)

	case strings.HasPrefix(url, SchemeS3):
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(url, SchemeS3), "/")
		if bucket == "" {
			return nil, fmt.Errorf("eventstore: s3 URL %q has no bucket", url)
		}
		objects, err := storage.NewS3Storage(ctx, bucket, o.s3)
		if err != nil {
			return nil, fmt.Errorf("eventstore: %w", err)
		}
		return NewArchiveStore(objects, archivePrefix(prefix, table)), nil

	case strings.HasPrefix(url, SchemeLocal):
		dir := strings.TrimPrefix(url, SchemeLocal)
		if dir == "" {
			return nil, fmt.Errorf("eventstore: local URL %q has no directory", url)
		}
		objects, err := storage.NewLocalStorage(dir)
		if err != nil {
			return nil, fmt.Errorf("eventstore: %w", err)
		}
		return NewArchiveStore(objects, archivePrefix("", table)), nil

	default:
		return nil, fmt.Errorf("eventstore: unsupported storage URL %q", url)
	}
}

func archivePrefix(prefix, table string) string {
	if table == "" {
		table = DefaultTable
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return table
	}
	return prefix + "/" + table
}
