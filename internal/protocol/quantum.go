package protocol

import (
	"context"

	"github.com/nao1215/netprobe/internal/probe"
	"github.com/nao1215/netprobe/internal/quantum"
)

// StatusNotQuantumSafe is recorded when no quantum safe group was negotiated.
const StatusNotQuantumSafe = "Not Quantum Safe"

// QuantumConnect checks whether a TLS server negotiates a post-quantum or
// hybrid key exchange group.
type QuantumConnect struct {
	*probe.Base
	analyzer *quantum.Analyzer
}

// Connect implements probe.NetConnect.
func (c *QuantumConnect) Connect(ctx context.Context) {
	s := c.Settings()
	port := s.Port
	if port == 0 {
		port = portHTTPS
	}
	host := hostOf(s.Address)

	out := c.analyzer.ProcessBatchAlgorithms(ctx, host, port)
	switch {
	case out.Success:
		c.SetStatusCode(int(out.Kem.GroupID))
		c.ProcessStatus("Quantum Safe", c.Elapsed(), out.Message)
	case probe.IsTimeout(ctx, ctx.Err()):
		c.ProcessTimeout("negotiating with " + host)
	default:
		c.ProcessException(out.Message, StatusNotQuantumSafe)
	}
}
