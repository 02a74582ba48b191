package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/ptseed/config"
)

func testConfig(serverURL string) config.SiteConfig {
	return config.SiteConfig{
		URL:        serverURL,
		Cookie:     "session=valid",
		UserAgent:  "ptseed-test",
		LoginRetry: 3,
		Timeout:    5 * time.Second,
		AutoLogin:  true,
		Username:   "user",
		Password:   "pass",
	}
}

func TestNewClient(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name    string
		cfg     config.SiteConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "cookie only",
			cfg:  config.SiteConfig{URL: "https://tracker.example.com", Cookie: "session=x"},
		},
		{
			name: "credentials only",
			cfg:  config.SiteConfig{URL: "https://tracker.example.com", Username: "u", Password: "p"},
		},
		{
			name:    "missing URL",
			cfg:     config.SiteConfig{Cookie: "session=x"},
			wantErr: true,
			errMsg:  "URL is required",
		},
		{
			name:    "no cookie and no credentials",
			cfg:     config.SiteConfig{URL: "https://tracker.example.com"},
			wantErr: true,
			errMsg:  "cookie or credentials",
		},
		{
			name:    "bad proxy",
			cfg:     config.SiteConfig{URL: "https://tracker.example.com", Cookie: "x", Proxy: "://bad"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg, logger)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		page string
		want Classification
	}{
		{
			name: "free",
			page: `<img class="pro_free" alt="Free">`,
			want: ClassificationFree,
		},
		{
			name: "double upload free",
			page: `<img class="pro_free2up" alt="2X Free">`,
			want: ClassificationDoubleUp,
		},
		{
			name: "half free",
			page: `<img class="pro_50pctdown" alt="50%">`,
			want: ClassificationHalfFree,
		},
		{
			name: "double upload",
			page: `<img class="pro_2up" alt="2X">`,
			want: ClassificationDoubleUp,
		},
		{
			name: "no promotion",
			page: `<h1>Some.Release.2160p</h1>`,
			want: ClassificationDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/details.php", r.URL.Path)
				assert.Equal(t, "42", r.URL.Query().Get("id"))
				assert.Equal(t, "session=valid", r.Header.Get("Cookie"))
				w.Write([]byte(tt.page))
			}))
			defer server.Close()

			client, err := NewClient(testConfig(server.URL), zerolog.Nop())
			require.NoError(t, err)

			got, err := client.Classify(context.Background(), "42")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubmitParsesTorrentID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/takeupload.php", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "My.Release", r.MultipartForm.Value["name"][0])

		w.Header().Set("Location", "details.php?id=9876&uploaded=1")
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), zerolog.Nop())
	require.NoError(t, err)

	id, err := client.Submit(context.Background(), []byte("d4:infoe"), SubmitMeta{Name: "My.Release"})
	require.NoError(t, err)
	assert.Equal(t, "9876", id)
}

func TestAuthExpiredTriggersRelogin(t *testing.T) {
	var loginCalls, detailCalls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/takelogin.php":
			loginCalls.Add(1)
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "fresh"})
		case "/details.php":
			if detailCalls.Add(1) == 1 {
				// First call: stale cookie bounces to login.
				w.Header().Set("Location", "login.php?returnto=details")
				w.WriteHeader(http.StatusFound)
				return
			}
			assert.Equal(t, "session=fresh", r.Header.Get("Cookie"))
			w.Write([]byte(`<img class="pro_free">`))
		}
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), zerolog.Nop())
	require.NoError(t, err)

	got, err := client.Classify(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, ClassificationFree, got)
	assert.Equal(t, int32(1), loginCalls.Load())
	assert.Equal(t, int32(2), detailCalls.Load())
}

func TestAuthExpiredExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/takelogin.php":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "still-bad"})
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.LoginRetry = 2

	client, err := NewClient(cfg, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.Classify(context.Background(), "7")
	require.ErrorIs(t, err, ErrAuthExpired)
}
