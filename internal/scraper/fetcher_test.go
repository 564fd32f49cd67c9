package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Get(t *testing.T) {
	t.Run("sends user agent and returns body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "TestBot/1.0", r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<p>canción</p>"))
		}))
		defer server.Close()

		f := NewFetcher(FetcherConfig{UserAgent: "TestBot/1.0"})
		body, err := f.Get(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "<p>canción</p>", body)
	})

	t.Run("default user agent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		}))
		defer server.Close()

		_, err := NewFetcher(FetcherConfig{}).Get(context.Background(), server.URL)
		require.NoError(t, err)
	})

	t.Run("empty body is not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}))
		defer server.Close()

		body, err := NewFetcher(FetcherConfig{}).Get(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Empty(t, body)
	})

	t.Run("latin-1 page decoded to utf-8", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			w.Write([]byte("<p>canci\xf3n de oto\xf1o</p>"))
		}))
		defer server.Close()

		body, err := NewFetcher(FetcherConfig{}).Get(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "<p>canción de otoño</p>", body)
	})

	t.Run("non-2xx is a status error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := NewFetcher(FetcherConfig{}).Get(context.Background(), server.URL+"/x")

		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
		assert.Equal(t, server.URL+"/x", statusErr.URL)
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer server.Close()

		f := NewFetcher(FetcherConfig{Timeout: 50 * time.Millisecond})
		_, err := f.Get(context.Background(), server.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := NewFetcher(FetcherConfig{}).Get(context.Background(), "://nope")
		assert.Error(t, err)
	})
}

func TestFetcher_Robots(t *testing.T) {
	t.Run("disallowed path", func(t *testing.T) {
		var robotsHits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				robotsHits.Add(1)
				w.Write([]byte("User-agent: *\nDisallow: /admin\n"))
				return
			}
			w.Write([]byte("ok"))
		}))
		defer server.Close()

		f := NewFetcher(FetcherConfig{RespectRobots: true})

		_, err := f.Get(context.Background(), server.URL+"/admin/panel")
		assert.ErrorIs(t, err, ErrDisallowed)

		body, err := f.Get(context.Background(), server.URL+"/index.php?ir=ver_texto.php")
		require.NoError(t, err)
		assert.Equal(t, "ok", body)

		assert.Equal(t, int32(1), robotsHits.Load(), "robots.txt is cached per host")
	})

	t.Run("broken robots allows everything", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte("ok"))
		}))
		defer server.Close()

		body, err := NewFetcher(FetcherConfig{RespectRobots: true}).Get(context.Background(), server.URL+"/admin")
		require.NoError(t, err)
		assert.Equal(t, "ok", body)
	})

	t.Run("network failure is retried on the next call", func(t *testing.T) {
		var robotsHits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				robotsHits.Add(1)
				w.Write([]byte("User-agent: *\nDisallow: /admin\n"))
				return
			}
			w.Write([]byte("ok"))
		}))
		defer server.Close()

		rt := &failingRobots{next: http.DefaultTransport}
		rt.remaining.Store(1)
		f := NewFetcher(FetcherConfig{RespectRobots: true, HTTPClient: &http.Client{Transport: rt}})

		body, err := f.Get(context.Background(), server.URL+"/admin")
		require.NoError(t, err, "unreachable robots.txt allows the request")
		assert.Equal(t, "ok", body)

		_, err = f.Get(context.Background(), server.URL+"/admin")
		assert.ErrorIs(t, err, ErrDisallowed)
		_, err = f.Get(context.Background(), server.URL+"/admin")
		assert.ErrorIs(t, err, ErrDisallowed)

		assert.Equal(t, int32(1), robotsHits.Load(), "parsed robots.txt is cached")
	})

	t.Run("server error is not cached", func(t *testing.T) {
		var robotsHits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				if robotsHits.Add(1) == 1 {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				w.Write([]byte("User-agent: *\nDisallow: /\n"))
				return
			}
			w.Write([]byte("ok"))
		}))
		defer server.Close()

		f := NewFetcher(FetcherConfig{RespectRobots: true})

		_, err := f.Get(context.Background(), server.URL+"/page")
		require.NoError(t, err)

		_, err = f.Get(context.Background(), server.URL+"/page")
		assert.ErrorIs(t, err, ErrDisallowed)
		assert.Equal(t, int32(2), robotsHits.Load())
	})

	t.Run("missing robots is cached", func(t *testing.T) {
		var robotsHits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				robotsHits.Add(1)
				http.NotFound(w, r)
				return
			}
			w.Write([]byte("ok"))
		}))
		defer server.Close()

		f := NewFetcher(FetcherConfig{RespectRobots: true})
		for range 3 {
			_, err := f.Get(context.Background(), server.URL+"/page")
			require.NoError(t, err)
		}
		assert.Equal(t, int32(1), robotsHits.Load())
	})

	t.Run("ignored when disabled", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				w.Write([]byte("User-agent: *\nDisallow: /\n"))
				return
			}
			w.Write([]byte("ok"))
		}))
		defer server.Close()

		_, err := NewFetcher(FetcherConfig{}).Get(context.Background(), server.URL+"/page")
		assert.NoError(t, err)
	})
}

// failingRobots fails the first robots.txt requests with a network error.
type failingRobots struct {
	remaining atomic.Int32
	next      http.RoundTripper
}

func (f *failingRobots) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Path == "/robots.txt" && f.remaining.Add(-1) >= 0 {
		return nil, errors.New("connection reset by peer")
	}
	return f.next.RoundTrip(req)
}
