package protocol

import (
	"context"
	"fmt"

	"github.com/nao1215/netprobe/internal/probe"
	"github.com/nao1215/netprobe/internal/transport"
)

// RawConnect opens a TCP connection and closes it again.
type RawConnect struct {
	*probe.Base
	dialer transport.Dialer
}

// Connect implements probe.NetConnect.
func (c *RawConnect) Connect(ctx context.Context) {
	s := c.Settings()
	if s.Port == 0 {
		c.ProcessException("No port configured for "+hostOf(s.Address), probe.StatusError)
		return
	}
	addr := hostPort(s, 0)

	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if probe.IsTimeout(ctx, err) {
			c.ProcessTimeout("connecting to " + addr)
			return
		}
		c.ProcessException(fmt.Sprintf("Failed to connect to %s: %v", addr, err), probe.StatusException)
		return
	}
	rtt := c.Elapsed()
	_ = conn.Close()

	c.ProcessStatus("Connected", rtt)
}
