package probe

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vflopes/proxyhive/internal/model"
)

// trackedConn records whether Close was called. Only Close is ever
// reached in these tests, so the embedded net.Conn stays nil.
type trackedConn struct {
	net.Conn
	closed atomic.Bool
}

func (c *trackedConn) Close() error {
	c.closed.Store(true)
	return nil
}

func TestCheckSOCKSConnectSuccess(t *testing.T) {
	p := New(Options{Timeout: time.Second})
	conn := &trackedConn{}
	dial := func(network, addr string) (net.Conn, error) {
		assert.Equal(t, "tcp", network)
		assert.Equal(t, socksProbeAddr, addr)
		return conn, nil
	}

	working, latency, kind, msg := p.checkSOCKSConnect(context.Background(), dial)

	assert.True(t, working)
	assert.GreaterOrEqual(t, latency, int64(0))
	assert.Empty(t, kind)
	assert.Empty(t, msg)
	assert.True(t, conn.closed.Load())
}

func TestCheckSOCKSConnectDialError(t *testing.T) {
	p := New(Options{Timeout: time.Second})
	dial := func(network, addr string) (net.Conn, error) {
		return nil, errors.New("general SOCKS server failure")
	}

	working, _, kind, msg := p.checkSOCKSConnect(context.Background(), dial)

	assert.False(t, working)
	assert.Equal(t, model.ErrorOther, kind)
	assert.Contains(t, msg, "SOCKS server failure")
}

func TestCheckSOCKSConnectClosesLateDial(t *testing.T) {
	p := New(Options{Timeout: 20 * time.Millisecond})
	conn := &trackedConn{}
	dial := func(network, addr string) (net.Conn, error) {
		time.Sleep(80 * time.Millisecond)
		return conn, nil
	}

	working, _, kind, _ := p.checkSOCKSConnect(context.Background(), dial)

	assert.False(t, working)
	assert.Equal(t, model.ErrorTimeout, kind)

	// The dial finishes after the probe gave up; its connection must
	// still get closed instead of leaking.
	assert.Eventually(t, conn.closed.Load, time.Second, 10*time.Millisecond)
}
