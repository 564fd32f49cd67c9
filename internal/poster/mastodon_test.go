package poster

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMastodon(t *testing.T, handler http.HandlerFunc) *MastodonPoster {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewMastodonPoster(MastodonConfig{
		Server:      server.URL,
		AccessToken: "test-token",
	})
}

func TestMastodonPoster_Platform(t *testing.T) {
	p := NewMastodonPoster(MastodonConfig{Server: "https://col.social"})
	assert.Equal(t, "mastodon", p.Platform())
	assert.Equal(t, MastodonMaxLength, p.maxChars)
}

func TestMastodonPoster_Post(t *testing.T) {
	t.Run("successful post", func(t *testing.T) {
		p := newTestMastodon(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v1/statuses", r.URL.Path)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

			require.NoError(t, r.ParseForm())
			assert.Equal(t, "\"Rima XXI\"\n\n¿Qué es poesía?", r.PostForm.Get("status"))
			assert.Equal(t, "public", r.PostForm.Get("visibility"))
			assert.Equal(t, "es", r.PostForm.Get("language"))

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"109876","url":"https://col.social/@sonetobot/109876","content":"x"}`))
		})

		result, err := p.Post(context.Background(), PostContent{
			Text:   "\"Rima XXI\"\n\n¿Qué es poesía?",
			PoemID: 7,
		})
		require.NoError(t, err)
		assert.Equal(t, "109876", result.PostID)
		assert.Equal(t, "https://col.social/@sonetobot/109876", result.PostURL)
	})

	t.Run("over the limit is refused locally", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestMastodon(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		})

		_, err := p.Post(context.Background(), PostContent{Text: strings.Repeat("á", MastodonMaxLength+1)})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBudgetExceeded)
		assert.Zero(t, calls.Load())
	})

	t.Run("empty text", func(t *testing.T) {
		p := newTestMastodon(t, func(w http.ResponseWriter, r *http.Request) {})
		_, err := p.Post(context.Background(), PostContent{Text: "  "})
		assert.ErrorIs(t, err, ErrEmptyBody)
	})

	t.Run("unprocessable status", func(t *testing.T) {
		p := newTestMastodon(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"error":"Validation failed: Text character limit of 500 exceeded"}`))
		})

		_, err := p.Post(context.Background(), PostContent{Text: "verso"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("bad token", func(t *testing.T) {
		p := newTestMastodon(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"The access token is invalid"}`))
		})

		_, err := p.Post(context.Background(), PostContent{Text: "verso"})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestMastodonPoster_ValidateCredentials(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		p := newTestMastodon(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/accounts/verify_credentials", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"1","username":"sonetobot","acct":"sonetobot"}`))
		})

		assert.NoError(t, p.ValidateCredentials(context.Background()))
	})

	t.Run("invalid token", func(t *testing.T) {
		p := newTestMastodon(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"The access token is invalid"}`))
		})

		err := p.ValidateCredentials(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnauthorized))
	})
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"bad request: 401 Unauthorized", ErrUnauthorized},
		{"bad request: 403 Forbidden", ErrUnauthorized},
		{"bad request: 422 Unprocessable Entity", ErrRejected},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.ErrorIs(t, classifyError(errors.New(tt.msg)), tt.want)
		})
	}

	t.Run("other errors pass through", func(t *testing.T) {
		orig := errors.New("bad request: 500 Internal Server Error")
		got := classifyError(orig)
		assert.Same(t, orig, got)
	})
}

func TestDryRunPoster(t *testing.T) {
	p := NewDryRunPoster()
	assert.Equal(t, "dry-run", p.Platform())
	require.NoError(t, p.ValidateCredentials(context.Background()))

	first, err := p.Post(context.Background(), PostContent{Text: "uno"})
	require.NoError(t, err)
	second, err := p.Post(context.Background(), PostContent{Text: "dos"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first.PostID, "dry-run-"))
	assert.NotEqual(t, first.PostID, second.PostID)
}
