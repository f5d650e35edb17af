package protocol

import (
	"context"
	"fmt"
	"strings"

	"github.com/nao1215/netprobe/internal/probe"
)

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// DNSConnect resolves the configured host.
type DNSConnect struct {
	*probe.Base
	resolver Resolver
}

// Connect implements probe.NetConnect.
func (c *DNSConnect) Connect(ctx context.Context) {
	host := hostOf(c.Settings().Address)

	addrs, err := c.resolver.LookupHost(ctx, host)
	switch {
	case probe.IsTimeout(ctx, err) || (err != nil && ctx.Err() != nil):
		c.ProcessTimeout("while resolving " + host)
	case err != nil:
		c.ProcessException(fmt.Sprintf("Failed to resolve %s: %v", host, err), probe.StatusException)
	case len(addrs) == 0:
		c.ProcessException("No IP addresses found for host", probe.StatusException)
	default:
		c.ProcessStatus("Found IP Addresses", c.Elapsed(), strings.Join(addrs, ", "))
	}
}
