package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/nao1215/netprobe/internal/probe"
)

// ICMP reply statuses.
const (
	ReplySuccess                = "Success"
	ReplyDestinationUnreachable = "DestinationUnreachable"
	ReplyTimeExceeded           = "TtlExpired"

	// StatusPingReplyNull is recorded when no reply arrived at all.
	StatusPingReplyNull = "Ping Reply Null"
)

// PingReply is the answer to one echo request.
type PingReply struct {
	Status string
	RTT    time.Duration
	Peer   string
}

// Pinger sends one echo request to host.
type Pinger interface {
	Ping(ctx context.Context, host string) (PingReply, error)
}

// ICMPConnect probes a host with an ICMP echo request.
type ICMPConnect struct {
	*probe.Base
	pinger Pinger
}

// Connect implements probe.NetConnect.
func (c *ICMPConnect) Connect(ctx context.Context) {
	host := hostOf(c.Settings().Address)

	reply, err := c.pinger.Ping(ctx, host)
	if err != nil || reply.Status == "" {
		detail := "no reply"
		if err != nil {
			detail = err.Error()
		}
		c.ProcessException(fmt.Sprintf("No reply from %s: %s", host, detail), StatusPingReplyNull)
		return
	}

	if reply.Status != ReplySuccess {
		c.ProcessException(fmt.Sprintf("Reply from %s: %s", reply.Peer, reply.Status), reply.Status)
		return
	}
	c.ProcessStatus(reply.Status, reply.RTT.Milliseconds())
}

// ICMPPinger sends echo requests with golang.org/x/net/icmp. It tries an
// unprivileged datagram socket first and falls back to a raw socket, which
// needs CAP_NET_RAW.
type ICMPPinger struct {
	resolver *net.Resolver
	payload  []byte
	seq      atomic.Uint32
}

// NewICMPPinger creates a pinger resolving names with net.DefaultResolver.
func NewICMPPinger() *ICMPPinger {
	return &ICMPPinger{
		resolver: net.DefaultResolver,
		payload:  []byte("netprobe-echo-payload-0123456789"),
	}
}

type icmpFamily struct {
	proto     int
	echo      icmp.Type
	echoReply icmp.Type
	unreach   icmp.Type
	exceeded  icmp.Type
	dgram     string
	raw       string
	listen    string
}

var (
	familyV4 = icmpFamily{
		proto: 1, echo: ipv4.ICMPTypeEcho, echoReply: ipv4.ICMPTypeEchoReply,
		unreach: ipv4.ICMPTypeDestinationUnreachable, exceeded: ipv4.ICMPTypeTimeExceeded,
		dgram: "udp4", raw: "ip4:icmp", listen: "0.0.0.0",
	}
	familyV6 = icmpFamily{
		proto: 58, echo: ipv6.ICMPTypeEchoRequest, echoReply: ipv6.ICMPTypeEchoReply,
		unreach: ipv6.ICMPTypeDestinationUnreachable, exceeded: ipv6.ICMPTypeTimeExceeded,
		dgram: "udp6", raw: "ip6:ipv6-icmp", listen: "::",
	}
)

// Ping implements Pinger.
func (p *ICMPPinger) Ping(ctx context.Context, host string) (PingReply, error) {
	ip, err := p.resolve(ctx, host)
	if err != nil {
		return PingReply{}, err
	}

	fam := familyV4
	if ip.To4() == nil {
		fam = familyV6
	}

	conn, datagram, err := listenICMP(fam)
	if err != nil {
		return PingReply{}, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // enforced by AfterFunc too
	}

	seq := int(p.seq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: fam.echo,
		Body: &icmp.Echo{ID: os.Getpid() & 0xffff, Seq: seq, Data: p.payload},
	}
	wire, err := msg.Marshal(nil)
	if err != nil {
		return PingReply{}, err
	}

	var dst net.Addr = &net.IPAddr{IP: ip}
	if datagram {
		dst = &net.UDPAddr{IP: ip}
	}

	sent := time.Now()
	if _, err := conn.WriteTo(wire, dst); err != nil {
		return PingReply{}, fmt.Errorf("failed to send echo request: %w", err)
	}

	buf := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return PingReply{}, ctx.Err()
			}
			return PingReply{}, err
		}
		reply, ok := matchReply(fam, buf[:n], seq, datagram)
		if !ok {
			continue
		}
		reply.RTT = time.Since(sent)
		reply.Peer = peerIP(peer)
		return reply, nil
	}
}

func (p *ICMPPinger) resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	addrs, err := p.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP, nil
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses for %s", host)
	}
	return addrs[0].IP, nil
}

func listenICMP(fam icmpFamily) (*icmp.PacketConn, bool, error) {
	conn, err := icmp.ListenPacket(fam.dgram, fam.listen)
	if err == nil {
		return conn, true, nil
	}
	conn, rawErr := icmp.ListenPacket(fam.raw, fam.listen)
	if rawErr != nil {
		return nil, false, errors.Join(err, rawErr)
	}
	return conn, false, nil
}

// matchReply decodes an ICMP message and reports whether it answers our
// request. Datagram sockets rewrite the echo ID, so only the sequence is
// compared there.
func matchReply(fam icmpFamily, data []byte, seq int, datagram bool) (PingReply, bool) {
	msg, err := icmp.ParseMessage(fam.proto, data)
	if err != nil {
		return PingReply{}, false
	}

	switch msg.Type {
	case fam.echoReply:
		echo, ok := msg.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			return PingReply{}, false
		}
		if !datagram && echo.ID != os.Getpid()&0xffff {
			return PingReply{}, false
		}
		return PingReply{Status: ReplySuccess}, true
	case fam.unreach:
		return PingReply{Status: ReplyDestinationUnreachable}, true
	case fam.exceeded:
		return PingReply{Status: ReplyTimeExceeded}, true
	}
	return PingReply{}, false
}

func peerIP(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP.String()
	case *net.IPAddr:
		return a.IP.String()
	case nil:
		return ""
	default:
		return a.String()
	}
}
