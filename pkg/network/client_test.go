package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.UserAgent()))
	}))
	defer server.Close()

	f, err := NewFactory(Options{UserAgent: "test-agent"})
	require.NoError(t, err)
	s, err := f.Session()
	require.NoError(t, err)
	defer s.Close()

	body, err := s.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "test-agent", string(body))

	body, err = s.Get(context.Background(), server.URL+"/other", http.Header{"User-Agent": {"custom"}})
	require.NoError(t, err)
	assert.Equal(t, "custom", string(body), "explicit user agent wins")
}

func TestFactoryDefaults(t *testing.T) {
	f, err := NewFactory(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, f.opts.UserAgent)

	client, err := f.Client()
	require.NoError(t, err)
	assert.Zero(t, client.Timeout)
}

func TestFactoryTimeout(t *testing.T) {
	f, err := NewFactory(Options{Timeout: 5 * time.Second})
	require.NoError(t, err)
	client, err := f.Client()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, client.Timeout)
}

func TestFactoryClientsDoNotShareTransport(t *testing.T) {
	f, err := NewFactory(Options{})
	require.NoError(t, err)
	a, err := f.Client()
	require.NoError(t, err)
	b, err := f.Client()
	require.NoError(t, err)

	assert.NotSame(t, a.Transport.(*userAgentTransport).base, b.Transport.(*userAgentTransport).base)
}

func TestProxyAddr(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"127.0.0.1:9050", "127.0.0.1:9050", false},
		{"socks5://127.0.0.1:9050", "127.0.0.1:9050", false},
		{"socks5h://tor:9050", "tor:9050", false},
		{"http://127.0.0.1:8080", "", true},
		{"socks5://", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := proxyAddr(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFactoryProxy(t *testing.T) {
	_, err := NewFactory(Options{Proxy: "http://proxy:8080"})
	assert.Error(t, err)

	f, err := NewFactory(Options{Proxy: "socks5://127.0.0.1:9050"})
	require.NoError(t, err)
	client, err := f.Client()
	require.NoError(t, err)
	assert.NotNil(t, client.Transport.(*userAgentTransport).base.(*http.Transport).DialContext)
}
