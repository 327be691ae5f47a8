package probe

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vflopes/proxyhive/internal/model"
)

// timeoutErr implements net.Error with Timeout() == true.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.ErrorKind
	}{
		{name: "nil error", err: nil, want: ""},
		{name: "context deadline", err: fmt.Errorf("probe: %w", context.DeadlineExceeded), want: model.ErrorTimeout},
		{name: "net timeout", err: timeoutErr{}, want: model.ErrorTimeout},
		{name: "connection refused", err: fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), want: model.ErrorConnectionRefused},
		{name: "connection reset", err: fmt.Errorf("read tcp: %w", syscall.ECONNRESET), want: model.ErrorConnectionRefused},
		{name: "broken pipe", err: fmt.Errorf("write tcp: %w", syscall.EPIPE), want: model.ErrorConnectionRefused},
		{name: "malformed response", err: errors.New(`malformed HTTP response "\x15\x03\x01"`), want: model.ErrorProtocolMismatch},
		{name: "unexpected eof", err: errors.New("unexpected EOF"), want: model.ErrorProtocolMismatch},
		{name: "anything else", err: errors.New("no route to host"), want: model.ErrorOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, msg := Classify(tt.err)
			assert.Equal(t, tt.want, kind)
			if tt.err != nil {
				assert.Equal(t, tt.err.Error(), msg)
			}
		})
	}
}
