package model

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProxyType is the protocol the proxy speaks on its listening port.
type ProxyType string

const (
	TypeHTTP   ProxyType = "http"
	TypeHTTPS  ProxyType = "https"
	TypeSOCKS4 ProxyType = "socks4"
	TypeSOCKS5 ProxyType = "socks5"
)

// ProxyStatus is the last known health classification of a proxy.
type ProxyStatus string

const (
	StatusUntested ProxyStatus = "untested"
	StatusActive   ProxyStatus = "active"
	StatusInactive ProxyStatus = "inactive"
)

// Proxy represents a proxy health record document
type Proxy struct {
	ID                  primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	IP                  string             `json:"ip" bson:"ip"`
	Port                int                `json:"port" bson:"port"`
	Type                ProxyType          `json:"type" bson:"type"`
	Status              ProxyStatus        `json:"status" bson:"status"`
	Country             string             `json:"country,omitempty" bson:"country,omitempty"`
	Source              string             `json:"source,omitempty" bson:"source,omitempty"`
	IsWorking           bool               `json:"is_working" bson:"is_working"`
	ResponseTimeMs      *int64             `json:"response_time_ms,omitempty" bson:"response_time_ms,omitempty"`
	SupportsHTTPS       bool               `json:"supports_https" bson:"supports_https"`
	HTTPSResponseTimeMs *int64             `json:"https_response_time_ms,omitempty" bson:"https_response_time_ms,omitempty"`
	LastChecked         *time.Time         `json:"last_checked,omitempty" bson:"last_checked,omitempty"`
	LastWorking         *time.Time         `json:"last_working,omitempty" bson:"last_working,omitempty"`
	LastHTTPSCheck      *time.Time         `json:"last_https_check,omitempty" bson:"last_https_check,omitempty"`
	LastHTTPSWorking    *time.Time         `json:"last_https_working,omitempty" bson:"last_https_working,omitempty"`
	SuccessCount        int                `json:"success_count" bson:"success_count"`
	FailureCount        int                `json:"failure_count" bson:"failure_count"`
	HTTPSSuccessCount   int                `json:"https_success_count" bson:"https_success_count"`
	HTTPSFailureCount   int                `json:"https_failure_count" bson:"https_failure_count"`
	CreatedAt           time.Time          `json:"created_at" bson:"created_at"`
}

// Validate validates a proxy record supplied through the API
func (p *Proxy) Validate() error {
	if p.IP == "" {
		return errors.New("proxy ip is required")
	}
	if net.ParseIP(p.IP) == nil {
		return fmt.Errorf("invalid proxy ip: %s", p.IP)
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("invalid proxy port: %d", p.Port)
	}

	switch p.Type {
	case TypeHTTP, TypeHTTPS, TypeSOCKS4, TypeSOCKS5:
	default:
		return fmt.Errorf("invalid proxy type: %s (must be 'http', 'https', 'socks4' or 'socks5')", p.Type)
	}

	if p.Status == "" {
		p.Status = StatusUntested
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	return nil
}

// Addr returns the host:port address of the proxy
func (p *Proxy) Addr() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

// ProxyFilter narrows which proxies are selected for a validation run.
// The zero value matches everything.
type ProxyFilter struct {
	Status           ProxyStatus `json:"status,omitempty"`
	Type             ProxyType   `json:"type,omitempty"`
	Country          string      `json:"country,omitempty"`
	OlderThanMinutes int         `json:"older_than_minutes,omitempty"`
	OlderThanHours   int         `json:"older_than_hours,omitempty"`
}

// Cutoff returns the last_checked cutoff implied by the filter's age
// constraints, or the zero time when none apply.
func (f ProxyFilter) Cutoff(now time.Time) time.Time {
	switch {
	case f.OlderThanMinutes > 0:
		return now.Add(-time.Duration(f.OlderThanMinutes) * time.Minute)
	case f.OlderThanHours > 0:
		return now.Add(-time.Duration(f.OlderThanHours) * time.Hour)
	}
	return time.Time{}
}
