package avatar_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/service/avatar"
)

func TestHTTPSource(t *testing.T) {
	t.Run("returns body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gt.Value(t, r.Method).Equal(http.MethodGet)
			_, _ = w.Write([]byte("image-bytes"))
		}))
		defer srv.Close()

		data, err := avatar.NewHTTPSource(srv.URL).Fetch(context.Background())
		gt.NoError(t, err).Required()
		gt.Value(t, string(data)).Equal("image-bytes")
	})

	t.Run("empty body is an upstream failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		_, err := avatar.NewHTTPSource(srv.URL).Fetch(context.Background())
		gt.Error(t, err).Is(model.ErrUpstream)
	})

	t.Run("error status is an upstream failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := avatar.NewHTTPSource(srv.URL).Fetch(context.Background())
		gt.Error(t, err).Is(model.ErrUpstream)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		src := avatar.NewHTTPSource(srv.URL, avatar.WithFetchTimeout(50*time.Millisecond))
		_, err := src.Fetch(context.Background())
		gt.Error(t, err).Is(model.ErrUpstream)
	})
}

func TestNewSource(t *testing.T) {
	ctx := context.Background()

	src, err := avatar.NewSource(ctx, "")
	gt.NoError(t, err).Required()
	_, ok := src.(*avatar.HTTPSource)
	gt.Bool(t, ok).True()

	_, err = avatar.NewSource(ctx, "ftp://example.com/a.png")
	gt.Error(t, err).Is(model.ErrConfiguration)
}
