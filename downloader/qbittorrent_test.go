package downloader

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/ptseed/config"
)

// newFakeWebAPI fakes the qBittorrent Web API: login issues a session
// cookie and delete succeeds regardless of hash, matching the real
// server's behavior.
func newFakeWebAPI(t *testing.T, deletes *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/auth/login"):
			http.SetCookie(w, &http.Cookie{Name: "SID", Value: "fake-session"})
			fmt.Fprint(w, "Ok.")
		case strings.HasSuffix(r.URL.Path, "/torrents/delete"):
			atomic.AddInt32(deletes, 1)
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/torrents/info"):
			fmt.Fprint(w, "[]")
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
}

func newTestAdapter(t *testing.T, srv *httptest.Server) *QBittorrent {
	t.Helper()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	q, err := NewQBittorrent(config.DownloaderConfig{
		Type:     "qbittorrent",
		Host:     host,
		Port:     port,
		Username: "admin",
		Password: "adminadmin",
		Timeout:  5 * time.Second,
		Category: "pt-auto",
	}, zerolog.Nop())
	require.NoError(t, err)
	return q
}

func TestRemoveIdempotentOnAbsentHash(t *testing.T) {
	var deletes int32
	srv := newFakeWebAPI(t, &deletes)
	defer srv.Close()

	q := newTestAdapter(t, srv)
	ctx := context.Background()

	// The hash was never added; both deletions must succeed.
	hash := "0123456789abcdef0123456789abcdef01234567"
	require.NoError(t, q.Remove(ctx, hash, true))
	require.NoError(t, q.Remove(ctx, hash, true))
	assert.EqualValues(t, 2, atomic.LoadInt32(&deletes))
}

func TestListEmptyCategory(t *testing.T) {
	var deletes int32
	srv := newFakeWebAPI(t, &deletes)
	defer srv.Close()

	q := newTestAdapter(t, srv)

	metrics, err := q.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, metrics)
}
