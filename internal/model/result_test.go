package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProtocolTested(t *testing.T) {
	latency := int64(120)

	tests := []struct {
		name   string
		result CheckResult
		want   string
	}{
		{name: "http only", result: CheckResult{Type: TypeHTTP}, want: "http"},
		{name: "socks5 only", result: CheckResult{Type: TypeSOCKS5}, want: "socks5"},
		{name: "https succeeded", result: CheckResult{Type: TypeHTTP, SupportsHTTPS: true}, want: "both"},
		{name: "https measured", result: CheckResult{Type: TypeHTTP, HTTPSResponseTimeMs: &latency}, want: "both"},
		{name: "https attempted and failed", result: CheckResult{Type: TypeHTTP, HTTPSErrorMessage: "tls handshake timeout"}, want: "both"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.ProtocolTested())
		})
	}
}
