package avatar

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/utils/safe"
	"google.golang.org/api/iterator"
)

const (
	// DefaultSourceURL serves a freshly generated portrait on every request
	DefaultSourceURL = "https://thispersondoesnotexist.com"

	// DefaultFetchTimeout bounds a single image download
	DefaultFetchTimeout = 30 * time.Second

	// MaxImageBytes caps how much of a response body is read
	MaxImageBytes = 16 << 20
)

// Source provides the raw bytes of the next avatar image
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// NewSource picks an implementation by URL scheme: http(s):// or gs://bucket/prefix
func NewSource(ctx context.Context, rawURL string) (Source, error) {
	if rawURL == "" {
		rawURL = DefaultSourceURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, goerr.Wrap(model.ErrConfiguration, "invalid image source URL", goerr.V("url", rawURL))
	}

	switch u.Scheme {
	case "http", "https":
		return NewHTTPSource(rawURL), nil
	case "gs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create storage client")
		}
		return NewGCSSource(client, u.Host, strings.TrimPrefix(u.Path, "/")), nil
	default:
		return nil, goerr.Wrap(model.ErrConfiguration, "unsupported image source scheme",
			goerr.V("url", rawURL),
			goerr.V("scheme", u.Scheme))
	}
}

// HTTPSource downloads an image from a fixed URL
type HTTPSource struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

type HTTPSourceOption func(*HTTPSource)

func WithHTTPClient(client *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

func WithFetchTimeout(d time.Duration) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.timeout = d
	}
}

func NewHTTPSource(rawURL string, opts ...HTTPSourceOption) *HTTPSource {
	s := &HTTPSource{
		url:     rawURL,
		client:  http.DefaultClient,
		timeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create image request", goerr.V("url", s.url))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(model.ErrUpstream, "failed to fetch image",
			goerr.V("url", s.url),
			goerr.V("cause", err.Error()))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, goerr.Wrap(model.ErrUpstream, "image source returned error status",
			goerr.V("url", s.url),
			goerr.V("status", resp.StatusCode))
	}

	return readImage(resp.Body, s.url)
}

// GCSSource returns a randomly chosen object under bucket/prefix
type GCSSource struct {
	client  *storage.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

func NewGCSSource(client *storage.Client, bucket, prefix string) *GCSSource {
	return &GCSSource{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		timeout: DefaultFetchTimeout,
	}
}

func (s *GCSSource) Fetch(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	bkt := s.client.Bucket(s.bucket)
	var names []string
	it := bkt.Objects(ctx, &storage.Query{Prefix: s.prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(model.ErrUpstream, "failed to list image objects",
				goerr.V("bucket", s.bucket),
				goerr.V("prefix", s.prefix),
				goerr.V("cause", err.Error()))
		}
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		names = append(names, attrs.Name)
	}

	if len(names) == 0 {
		return nil, goerr.Wrap(model.ErrUpstream, "no image objects found",
			goerr.V("bucket", s.bucket),
			goerr.V("prefix", s.prefix))
	}

	name := names[rand.IntN(len(names))]
	r, err := bkt.Object(name).NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(model.ErrUpstream, "failed to open image object",
			goerr.V("bucket", s.bucket),
			goerr.V("object", name),
			goerr.V("cause", err.Error()))
	}
	defer safe.Close(ctx, r)

	return readImage(r, "gs://"+s.bucket+"/"+name)
}

func readImage(r io.Reader, origin string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, goerr.Wrap(model.ErrUpstream, "failed to read image body",
			goerr.V("origin", origin),
			goerr.V("cause", err.Error()))
	}
	if len(data) == 0 {
		return nil, goerr.Wrap(model.ErrUpstream, "image source returned empty body", goerr.V("origin", origin))
	}
	if len(data) > MaxImageBytes {
		return nil, goerr.Wrap(model.ErrUpstream, "image exceeds size limit",
			goerr.V("origin", origin),
			goerr.V("limit", MaxImageBytes))
	}
	return data, nil
}
