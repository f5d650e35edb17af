package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// Dialer opens stream connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Direct dials targets without a proxy.
var Direct Dialer = &net.Dialer{KeepAlive: 30 * time.Second}

// SOCKS5Dialer dials through a SOCKS5 proxy.
type SOCKS5Dialer struct {
	address string
	dialer  proxy.Dialer
}

// NewSOCKS5Dialer creates a dialer for the proxy at address ("host:port").
// Username and password are optional; when both are empty no
// authentication is offered. No connection is made until the first dial;
// use CheckConnection to verify the proxy.
func NewSOCKS5Dialer(address, username, password string) (*SOCKS5Dialer, error) {
	if !isValidProxyAddress(address) {
		return nil, ErrInvalidProxyAddress
	}

	var auth *proxy.Auth
	if username != "" || password != "" {
		auth = &proxy.Auth{User: username, Password: password}
	}

	d, err := proxy.SOCKS5("tcp", address, auth, &net.Dialer{KeepAlive: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	return &SOCKS5Dialer{address: address, dialer: d}, nil
}

// Address returns the proxy address.
func (s *SOCKS5Dialer) Address() string {
	return s.address
}

// DialContext implements Dialer.
//
// The x/net SOCKS5 dialer implements proxy.ContextDialer; the goroutine
// fallback only covers dialers that do not, and may leave the underlying
// attempt running briefly after ctx is done.
func (s *SOCKS5Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := s.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := s.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case r := <-resultCh:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-resultCh; r.conn != nil {
				_ = r.conn.Close() //nolint:errcheck // abandoned dial
			}
		}()
		return nil, ctx.Err()
	}
}

// isValidProxyAddress accepts "host:port" with a non-empty host and a port
// in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}
