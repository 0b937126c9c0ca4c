package revalidate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidate_PostsPathsAndSecret(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"revalidated":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "reval-secret", time.Second, nil, zerolog.Nop())
	err := c.Invalidate(context.Background(), Request{Paths: []string{"/listings", "/", "/listings/acme"}, Reason: "listings UPDATE"})
	require.NoError(t, err)

	assert.Equal(t, "reval-secret", got.Secret)
	assert.Equal(t, "path", got.Type)
	assert.Equal(t, []string{"/listings", "/", "/listings/acme"}, got.Paths)
}

func TestInvalidate_NonSuccessIsFailureWithoutRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`invalid secret`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "wrong", time.Second, nil, zerolog.Nop())
	err := c.Invalidate(context.Background(), Request{Paths: []string{"/"}})
	require.Error(t, err)

	var de *DownstreamError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, http.StatusUnauthorized, de.Status)
	assert.Equal(t, "invalid secret", de.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestInvalidate_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, "s", 50*time.Millisecond, nil, zerolog.Nop())
	start := time.Now()
	err := c.Invalidate(context.Background(), Request{Paths: []string{"/"}})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestInvalidate_EmptyPathsIsNoop(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "s", time.Second, nil, zerolog.Nop())
	assert.NoError(t, c.Invalidate(context.Background(), Request{}))
}
