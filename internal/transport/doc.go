// Package transport provides the network paths probes use to reach their
// targets: a direct dialer, a SOCKS5 dialer (optionally pointed at an
// embedded Tor daemon), a proxy health check and HTTP clients built on top
// of either dialer.
//
// Probe variants depend on the Dialer interface only, so a deployment can
// route SMTP, raw TCP and HTTP probes through a proxy without the variants
// knowing about it.
package transport
