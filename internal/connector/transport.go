package connector

import (
	"net"
	"net/http"
	"time"
)

// PoolSettings configures the HTTP transport shared by an adapter.
type PoolSettings struct {
	MaxIdleConns    int
	MaxConnsPerHost int
	IdleConnTimeout time.Duration
	Timeout         time.Duration
	// LocalIP binds outgoing connections to one source address when set.
	LocalIP string
}

// NewHTTPClient builds a pooled client for exchange REST calls.
func NewHTTPClient(s PoolSettings) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        s.MaxIdleConns,
		MaxIdleConnsPerHost: s.MaxIdleConns,
		MaxConnsPerHost:     s.MaxConnsPerHost,
		IdleConnTimeout:     s.IdleConnTimeout,
		DisableCompression:  false,
	}
	if s.LocalIP != "" {
		if ip := net.ParseIP(s.LocalIP); ip != nil {
			dialer := &net.Dialer{LocalAddr: &net.TCPAddr{IP: ip}}
			transport.DialContext = dialer.DialContext
		}
	}
	return &http.Client{Transport: transport, Timeout: s.Timeout}
}
