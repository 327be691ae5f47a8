package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vflopes/proxyhive/internal/model"
)

func TestExtractEchoIP(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantIP     string
		wantParsed bool
	}{
		{name: "httpbin origin", body: `{"origin": "1.2.3.4"}`, wantIP: "1.2.3.4", wantParsed: true},
		{name: "ipify ip", body: `{"ip": "1.2.3.4"}`, wantIP: "1.2.3.4", wantParsed: true},
		{name: "ip-api query", body: `{"status": "success", "query": "1.2.3.4"}`, wantIP: "1.2.3.4", wantParsed: true},
		{name: "origin with forwarded chain", body: `{"origin": "1.2.3.4, 5.6.7.8"}`, wantIP: "1.2.3.4, 5.6.7.8", wantParsed: true},
		{name: "unknown json shape", body: `{"address": "1.2.3.4"}`, wantParsed: false},
		{name: "not json", body: `<html>busted</html>`, wantParsed: false},
		{name: "empty body", body: ``, wantParsed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, parsed := extractEchoIP([]byte(tt.body))
			assert.Equal(t, tt.wantParsed, parsed)
			assert.Equal(t, tt.wantIP, ip)
		})
	}
}

// fakeProxy runs an httptest server that behaves like a forward HTTP proxy
// for plain GET requests, echoing the given origin IP as JSON.
func fakeProxy(t *testing.T, origin string) model.Proxy {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"origin": %q}`, origin)
	}))
	t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return model.Proxy{IP: host, Port: port, Type: model.TypeHTTP}
}

func TestCheckWorkingHTTPProxy(t *testing.T) {
	proxy := fakeProxy(t, "127.0.0.1")

	p := New(Options{
		Timeout:       2 * time.Second,
		WorkerID:      "w-test",
		HTTPTestURLs:  []string{"http://echo.test/ip"},
		HTTPSTestURLs: []string{"http://echo.test/ip"},
	})

	result := p.Check(context.Background(), proxy)

	assert.True(t, result.IsWorking)
	assert.Empty(t, result.ErrorKind)
	require.NotNil(t, result.ResponseTimeMs)
	assert.GreaterOrEqual(t, *result.ResponseTimeMs, int64(0))
	assert.Equal(t, "w-test", result.WorkerID)
	assert.Equal(t, "http", result.CheckMethod)
	assert.Equal(t, proxy.IP, result.IP)
	assert.Equal(t, proxy.Port, result.Port)
	assert.False(t, result.CheckedAt.IsZero())
}

// An endpoint echoing some other address means the proxy did not actually
// forward our traffic.
func TestCheckEchoMismatch(t *testing.T) {
	proxy := fakeProxy(t, "9.9.9.9")

	p := New(Options{
		Timeout:       2 * time.Second,
		HTTPTestURLs:  []string{"http://echo.test/ip"},
		HTTPSTestURLs: []string{"http://echo.test/ip"},
	})

	result := p.Check(context.Background(), proxy)

	assert.False(t, result.IsWorking)
	assert.Equal(t, model.ErrorProtocolMismatch, result.ErrorKind)
	assert.Contains(t, result.ErrorMessage, "echoed IP")
}

func TestCheckUnreachableProxy(t *testing.T) {
	// Grab a port and close it again so the dial is refused
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	p := New(Options{
		Timeout:       time.Second,
		HTTPTestURLs:  []string{"http://echo.test/ip"},
		HTTPSTestURLs: []string{"http://echo.test/ip"},
	})

	result := p.Check(context.Background(), model.Proxy{IP: "127.0.0.1", Port: port, Type: model.TypeHTTP})

	assert.False(t, result.IsWorking)
	assert.Equal(t, model.ErrorConnectionRefused, result.ErrorKind)
	assert.Nil(t, result.ResponseTimeMs)
}

func TestCheckUnsupportedType(t *testing.T) {
	p := New(Options{Timeout: time.Second})

	result := p.Check(context.Background(), model.Proxy{IP: "10.0.0.1", Port: 1080, Type: "gopher"})

	assert.False(t, result.IsWorking)
	assert.Equal(t, model.ErrorUnsupportedScheme, result.ErrorKind)
	assert.Contains(t, result.ErrorMessage, "unsupported proxy type")
}

func TestCheckSOCKSConnectRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	p := New(Options{Timeout: time.Second})

	result := p.Check(context.Background(), model.Proxy{IP: "127.0.0.1", Port: port, Type: model.TypeSOCKS5})

	assert.False(t, result.IsWorking)
	assert.Equal(t, "socket", result.CheckMethod)
	assert.NotEmpty(t, result.ErrorKind)
}
