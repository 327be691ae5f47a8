// Package probe implements the per-proxy reachability check. A probe never
// returns an error: failures are captured in the CheckResult so a flaky
// proxy cannot fail the batch that contains it.
package probe

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oliveagle/jsonpath"

	"github.com/vflopes/proxyhive/internal/model"
)

const (
	DefaultTimeout = 10 * time.Second

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	maxEchoBodyBytes = 64 * 1024
)

// Test endpoints echo the caller's public IP as JSON; the probe verifies
// the echoed address against the proxy to catch transparent failures.
var (
	defaultHTTPTestURLs = []string{
		"http://httpbin.org/ip",
		"http://ip-api.com/json",
	}
	defaultHTTPSTestURLs = []string{
		"https://api.ipify.org?format=json",
		"https://jsonip.com",
		"https://httpbin.org/ip",
	}

	// JSONPath expressions for the IP field across the test endpoints.
	echoIPExpressions = []string{"$.origin", "$.ip", "$.query"}
)

// Options configures a Prober.
type Options struct {
	Timeout       time.Duration
	WorkerID      string
	HTTPTestURLs  []string
	HTTPSTestURLs []string
}

// Prober checks individual proxies. Safe for concurrent use.
type Prober struct {
	timeout       time.Duration
	workerID      string
	httpTestURLs  []string
	httpsTestURLs []string
}

// New creates a prober with its own per-target timeout.
func New(opts Options) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if len(opts.HTTPTestURLs) == 0 {
		opts.HTTPTestURLs = defaultHTTPTestURLs
	}
	if len(opts.HTTPSTestURLs) == 0 {
		opts.HTTPSTestURLs = defaultHTTPSTestURLs
	}
	return &Prober{
		timeout:       opts.Timeout,
		workerID:      opts.WorkerID,
		httpTestURLs:  opts.HTTPTestURLs,
		httpsTestURLs: opts.HTTPSTestURLs,
	}
}

// Check probes one proxy and reports connectivity, latency and HTTPS
// support. HTTP/HTTPS proxies get a proxied GET against the test
// endpoints; SOCKS proxies get a tunneled TCP connect first, then an HTTPS
// attempt through the tunnel when the connect succeeds.
func (p *Prober) Check(ctx context.Context, proxy model.Proxy) model.CheckResult {
	result := model.CheckResult{
		ProxyID:     proxy.ID,
		IP:          proxy.IP,
		Port:        proxy.Port,
		Type:        proxy.Type,
		WorkerID:    p.workerID,
		CheckedAt:   time.Now().UTC(),
		CheckMethod: "http",
		TargetURL:   p.httpTestURLs[0],
	}

	switch proxy.Type {
	case model.TypeHTTP, model.TypeHTTPS:
		client := p.httpProxyClient(proxy)
		p.fillHTTP(ctx, client, proxy, &result)
		p.fillHTTPS(ctx, client, proxy, &result)

	case model.TypeSOCKS4, model.TypeSOCKS5:
		result.CheckMethod = "socket"
		result.TargetURL = socksProbeAddr
		dial, err := p.socksDialer(proxy)
		if err != nil {
			result.ErrorKind = model.ErrorUnsupportedScheme
			result.ErrorMessage = err.Error()
			return result
		}
		ok, latency, kind, msg := p.checkSOCKSConnect(ctx, dial)
		result.IsWorking = ok
		if ok {
			result.ResponseTimeMs = &latency
			p.fillHTTPS(ctx, p.socksClient(dial), proxy, &result)
		} else {
			result.ErrorKind = kind
			result.ErrorMessage = msg
		}

	default:
		result.ErrorKind = model.ErrorUnsupportedScheme
		result.ErrorMessage = fmt.Sprintf("unsupported proxy type: %s", proxy.Type)
	}

	return result
}

// fillHTTP records plain-HTTP connectivity on the result.
func (p *Prober) fillHTTP(ctx context.Context, client *http.Client, proxy model.Proxy, result *model.CheckResult) {
	ok, latency, kind, msg := p.checkEndpoints(ctx, client, proxy, p.httpTestURLs)
	result.IsWorking = ok
	if ok {
		result.ResponseTimeMs = &latency
	} else {
		result.ErrorKind = kind
		result.ErrorMessage = msg
	}
}

// fillHTTPS records HTTPS support on the result without affecting the
// primary working flag.
func (p *Prober) fillHTTPS(ctx context.Context, client *http.Client, proxy model.Proxy, result *model.CheckResult) {
	ok, latency, _, msg := p.checkEndpoints(ctx, client, proxy, p.httpsTestURLs)
	result.SupportsHTTPS = ok
	if ok {
		result.HTTPSResponseTimeMs = &latency
	} else {
		result.HTTPSErrorMessage = msg
	}
}

// checkEndpoints tries each test endpoint in turn and succeeds on the
// first 200 whose echoed IP matches the proxy (or whose body is not
// JSON we understand; status 200 alone then counts as working, as the
// endpoint list is not under our control).
func (p *Prober) checkEndpoints(ctx context.Context, client *http.Client, proxy model.Proxy, urls []string) (bool, int64, model.ErrorKind, string) {
	var (
		lastKind = model.ErrorOther
		lastMsg  = "no test endpoint reachable"
	)

	for _, testURL := range urls {
		ok, latency, kind, msg := p.fetchEcho(ctx, client, proxy, testURL)
		if ok {
			return true, latency, "", ""
		}
		if msg != "" {
			lastKind, lastMsg = kind, msg
		}
	}
	return false, 0, lastKind, lastMsg
}

func (p *Prober) fetchEcho(ctx context.Context, client *http.Client, proxy model.Proxy, testURL string) (bool, int64, model.ErrorKind, string) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, testURL, nil)
	if err != nil {
		return false, 0, model.ErrorOther, err.Error()
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		kind, msg := Classify(err)
		return false, 0, kind, msg
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		return false, 0, model.ErrorProtocolMismatch, fmt.Sprintf("HTTP %d from %s", resp.StatusCode, testURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEchoBodyBytes))
	if err != nil {
		kind, msg := Classify(err)
		return false, 0, kind, msg
	}

	echoed, parsed := extractEchoIP(body)
	if !parsed {
		// Endpoint answered but not with JSON we know; a 200 through the
		// proxy is still evidence it forwards traffic.
		return true, latency, "", ""
	}
	if strings.Contains(echoed, proxy.IP) {
		return true, latency, "", ""
	}
	return false, 0, model.ErrorProtocolMismatch, fmt.Sprintf("echoed IP %s does not match proxy", echoed)
}

// extractEchoIP pulls the caller IP out of a test endpoint's JSON body,
// trying each known JSONPath expression. parsed is false when the body is
// not JSON or no expression matched.
func extractEchoIP(body []byte) (ip string, parsed bool) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", false
	}

	for _, expr := range echoIPExpressions {
		value, err := jsonpath.JsonPathLookup(doc, expr)
		if err != nil {
			continue
		}
		if s, ok := value.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// httpProxyClient builds a client that routes everything through the proxy
// under test. Certificate verification is skipped: the fleet is full of
// MITM-ing free proxies and we are measuring reachability, not trust.
func (p *Prober) httpProxyClient(proxy model.Proxy) *http.Client {
	scheme := "http"
	if proxy.Type == model.TypeHTTPS {
		scheme = "https"
	}
	proxyURL := &url.URL{Scheme: scheme, Host: proxy.Addr()}

	return &http.Client{
		Timeout: p.timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyURL(proxyURL),
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
			DisableKeepAlives:   true,
			TLSHandshakeTimeout: p.timeout,
		},
	}
}
