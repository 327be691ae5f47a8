package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/vflopes/proxyhive/internal/model"
)

// Classify maps a probe transport error onto the error taxonomy recorded
// in check results. The message keeps the original error text for the
// check history.
func Classify(err error) (model.ErrorKind, string) {
	if err == nil {
		return "", ""
	}
	msg := err.Error()

	if errors.Is(err, context.DeadlineExceeded) {
		return model.ErrorTimeout, msg
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.ErrorTimeout, msg
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return model.ErrorConnectionRefused, msg
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return model.ErrorConnectionRefused, msg
	}

	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return model.ErrorProtocolMismatch, msg
	}
	if strings.Contains(msg, "malformed HTTP") || strings.Contains(msg, "unexpected EOF") {
		return model.ErrorProtocolMismatch, msg
	}

	return model.ErrorOther, msg
}
