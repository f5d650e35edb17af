package protocol

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/nao1215/netprobe/internal/probe"
)

// Default ports per protocol.
const (
	portHTTP  = 80
	portHTTPS = 443
	portSMTP  = 25
)

// hostOf strips a scheme, path and port from a configured address.
func hostOf(address string) string {
	address = strings.TrimSpace(address)
	if strings.Contains(address, "://") {
		if u, err := url.Parse(address); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	if i := strings.IndexByte(address, '/'); i >= 0 {
		address = address[:i]
	}
	if h, _, err := net.SplitHostPort(address); err == nil {
		return h
	}
	return strings.Trim(address, "[]")
}

// hostPort joins the settings' host with its port, or def when unset.
func hostPort(s probe.Settings, def int) string {
	port := s.Port
	if port == 0 {
		port = def
	}
	return net.JoinHostPort(hostOf(s.Address), strconv.Itoa(port))
}

// targetURL builds the URL an HTTP-style probe requests. A configured
// address carrying a scheme is used as is, with the configured port
// applied when the URL has none. Otherwise the scheme follows the
// endpoint type and port, and the default port is left out.
func targetURL(s probe.Settings, endpointType string) string {
	address := strings.TrimSpace(s.Address)
	if strings.Contains(address, "://") {
		u, err := url.Parse(address)
		if err == nil {
			if u.Port() == "" && s.Port != 0 {
				u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(s.Port))
			}
			return u.String()
		}
	}

	scheme := "http"
	if endpointType == "https" || s.Port == portHTTPS {
		scheme = "https"
	}

	hostAndPath := address
	path := ""
	if i := strings.IndexByte(address, '/'); i >= 0 {
		hostAndPath, path = address[:i], address[i:]
	}
	host := hostAndPath
	if h, _, err := net.SplitHostPort(hostAndPath); err == nil {
		host = h
	}

	u := url.URL{Scheme: scheme, Host: hostAndPath, Path: path}
	if s.Port != 0 && !isDefaultPort(scheme, s.Port) {
		u.Host = net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(s.Port))
	} else if s.Port != 0 {
		u.Host = hostWithBrackets(host)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// explicitURL is targetURL with the port always present, which is the
// form the external command processors expect ("https://host:port/path").
func explicitURL(s probe.Settings, endpointType string) string {
	u, err := url.Parse(targetURL(s, endpointType))
	if err != nil {
		return targetURL(s, endpointType)
	}
	if u.Port() == "" {
		port := portHTTP
		if u.Scheme == "https" {
			port = portHTTPS
		}
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	}
	return u.String()
}

func isDefaultPort(scheme string, port int) bool {
	return (scheme == "http" && port == portHTTP) || (scheme == "https" && port == portHTTPS)
}

func hostWithBrackets(host string) string {
	host = strings.Trim(host, "[]")
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}
