package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"
)

// checkProxyTimeout bounds the whole health check.
const checkProxyTimeout = 2 * time.Second

const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5AuthNoAccept  = 0xFF
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03
)

// DefaultCheckTarget is the host the proxy is asked to connect to during
// CheckConnection. Only the proxy's reply matters, not whether the
// connection to the target succeeds.
const DefaultCheckTarget = "example.com:80"

// CheckConnection performs a SOCKS5 greeting and a CONNECT request against
// proxyAddress. Any well-formed CONNECT reply, including a failure code,
// counts as ProxyStatusOK because it proves the proxy is processing
// requests. An empty target uses DefaultCheckTarget.
func CheckConnection(ctx context.Context, proxyAddress, target string) ProxyStatus {
	if target == "" {
		target = DefaultCheckTarget
	}
	host, portStr, err := net.SplitHostPort(target)
	if err != nil || len(host) > 255 {
		return ProxyStatusWrongType
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return ProxyStatusWrongType
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		return readFailure(err)
	}
	if authResp[0] != socks5Version || authResp[1] == socks5AuthNoAccept || authResp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrTypeDomID, byte(len(host))}
	req = append(req, host...)
	req = append(req, byte(port>>8), byte(port&0xFF))
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}

	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		return readFailure(err)
	}
	if connectResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

func readFailure(err error) ProxyStatus {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}
