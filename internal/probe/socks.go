package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	xproxy "golang.org/x/net/proxy"
	"h12.io/socks"

	"github.com/vflopes/proxyhive/internal/model"
)

// socksProbeAddr is a well-known, always-up TCP endpoint (Google public
// DNS) used to test that the SOCKS tunnel actually forwards connections.
const socksProbeAddr = "8.8.8.8:53"

type dialFunc func(network, addr string) (net.Conn, error)

// socksDialer returns a dial function tunneling through the proxy.
// SOCKS5 goes through x/net; SOCKS4, which x/net does not speak, through
// h12.io/socks.
func (p *Prober) socksDialer(proxy model.Proxy) (dialFunc, error) {
	switch proxy.Type {
	case model.TypeSOCKS5:
		dialer, err := xproxy.SOCKS5("tcp", proxy.Addr(), nil, &net.Dialer{Timeout: p.timeout})
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer for %s: %w", proxy.Addr(), err)
		}
		return dialer.Dial, nil

	case model.TypeSOCKS4:
		dial := socks.Dial(fmt.Sprintf("socks4://%s?timeout=%s", proxy.Addr(), p.timeout))
		return dial, nil

	default:
		return nil, fmt.Errorf("not a socks proxy type: %s", proxy.Type)
	}
}

// checkSOCKSConnect opens a tunneled connection to the probe address and
// measures how long the handshake plus connect takes.
func (p *Prober) checkSOCKSConnect(ctx context.Context, dial dialFunc) (bool, int64, model.ErrorKind, string) {
	type outcome struct {
		conn net.Conn
		err  error
	}

	start := time.Now()
	done := make(chan outcome)
	go func() {
		conn, err := dial("tcp", socksProbeAddr)
		select {
		case done <- outcome{conn, err}:
		default:
			// The timeout or context branch already returned; nobody
			// will read this result, so close the late connection here.
			if conn != nil {
				conn.Close()
			}
		}
	}()

	select {
	case o := <-done:
		latency := time.Since(start).Milliseconds()
		if o.err != nil {
			kind, msg := Classify(o.err)
			return false, 0, kind, msg
		}
		o.conn.Close()
		return true, latency, "", ""

	case <-time.After(p.timeout):
		return false, 0, model.ErrorTimeout, "socks connect timed out"
	case <-ctx.Done():
		kind, msg := Classify(ctx.Err())
		return false, 0, kind, msg
	}
}

// socksClient builds an HTTP client whose connections ride the SOCKS
// tunnel, used to test HTTPS support once basic connectivity works.
func (p *Prober) socksClient(dial dialFunc) *http.Client {
	return &http.Client{
		Timeout: p.timeout,
		Transport: &http.Transport{
			DialContext: func(_ context.Context, network, addr string) (net.Conn, error) {
				return dial(network, addr)
			},
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
			DisableKeepAlives:   true,
			TLSHandshakeTimeout: p.timeout,
		},
	}
}
