package protocol

import (
	"context"
	"fmt"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/netprobe/internal/probe"
	"github.com/nao1215/netprobe/internal/transport"
)

// StatusUnexpectedResponse is recorded when an SMTP server answers with the
// wrong code.
const StatusUnexpectedResponse = "Unexpected response"

// SMTPConnect reads the server greeting and exchanges HELO and QUIT. A 220
// greeting is enough for the server to count as up; the HELO reply is only
// recorded.
type SMTPConnect struct {
	*probe.Base
	dialer   transport.Dialer
	heloName string
}

// Connect implements probe.NetConnect.
func (c *SMTPConnect) Connect(ctx context.Context) {
	addr := hostPort(c.Settings(), portSMTP)

	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if probe.IsTimeout(ctx, err) {
			c.ProcessTimeout("connecting to " + addr)
			return
		}
		c.ProcessException(fmt.Sprintf("Failed to connect to %s: %v", addr, err), probe.StatusException)
		return
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	tp := textproto.NewConn(conn)

	greeting, ok := c.expect(ctx, tp, 220)
	if !ok {
		return
	}
	// The round trip ends at the greeting; HELO is best effort.
	rtt := c.Elapsed()
	extra := []string{greeting}
	if err := tp.PrintfLine("HELO %s", c.heloName); err == nil {
		line, err := readReply(tp)
		if err == nil && !strings.HasPrefix(line, "250") {
			extra = append(extra, "(HELO rejected: "+line+")")
		}
	}
	_ = tp.PrintfLine("QUIT")

	c.ProcessStatus("Connected", rtt, extra...)
}

// readReply reads one possibly multi-line reply and returns its last line.
// Multi-line replies use "NNN-" on every line but the last.
func readReply(tp *textproto.Conn) (string, error) {
	line, err := tp.ReadLine()
	for err == nil && len(line) >= 4 && line[3] == '-' {
		line, err = tp.ReadLine()
	}
	return line, err
}

// expect reads one reply and reports whether it carried code. Any other
// code is recorded as an unexpected response with the raw reply as data.
func (c *SMTPConnect) expect(ctx context.Context, tp *textproto.Conn, code int) (string, bool) {
	line, err := readReply(tp)
	if err != nil {
		c.processStreamError(ctx, err)
		return "", false
	}
	if !strings.HasPrefix(line, strconv.Itoa(code)) {
		c.ProcessException(fmt.Sprintf("%s: %s", StatusUnexpectedResponse, line), StatusUnexpectedResponse)
		return "", false
	}
	return line, true
}

func (c *SMTPConnect) processStreamError(ctx context.Context, err error) {
	if probe.IsTimeout(ctx, err) {
		c.ProcessTimeout("waiting for SMTP reply")
		return
	}
	c.ProcessException("Stream error: "+err.Error(), probe.StatusException)
}

// defaultHeloName is the name announced in HELO.
func defaultHeloName() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "localhost"
}
