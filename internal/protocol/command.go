package protocol

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nao1215/netprobe/internal/command"
	"github.com/nao1215/netprobe/internal/probe"
)

// Statuses recorded by command-backed probes.
const (
	StatusVulnerabilitiesFound = "Vulnerabilities Found"
	StatusHostDown             = "Host Down"
	StatusNoOpenPorts          = "No Open Ports"
	StatusCrawlFailed          = "Crawl Failed"
	StatusBroadcastFailed      = "Broadcast Failed"
	StatusListenFailed         = "Listen Failed"
	StatusKeepAliveFailed      = "Site Keep Alive Failed"
)

// MsgNoProcessor is the failure recorded when the provider has no
// processor for a command-backed probe.
const MsgNoProcessor = "No Command Processor Available"

// commandBase is embedded by every probe delegating to a command.Processor.
type commandBase struct {
	*probe.Base
	provider command.Provider
	name     string
}

// processor resolves the named processor. When none is registered it
// records the failure and returns false.
func (c *commandBase) processor() (command.Processor, bool) {
	if c.provider != nil {
		if p, ok := c.provider.GetProcessor(c.name); ok && p != nil {
			return p, true
		}
	}
	c.ProcessException(fmt.Sprintf("%s for %q", MsgNoProcessor, c.name), probe.StatusError)
	return nil, false
}

// run invokes p with args. A failed run caused by the probe deadline is
// recorded as a timeout and reported as handled.
func (c *commandBase) run(ctx context.Context, p command.Processor, args string) (command.Result, bool) {
	res := p.Run(ctx, args)
	if !res.Success && probe.IsTimeout(ctx, ctx.Err()) {
		c.ProcessTimeout("waiting for " + c.name)
		return res, false
	}
	return res, true
}

// withExtra appends the free-form arguments configured on the probe.
func withExtra(args string, s probe.Settings) string {
	if extra := strings.TrimSpace(s.Arguments); extra != "" {
		return args + " " + extra
	}
	return args
}

// quoteArg double-quotes v so command.SplitArgs yields it as one token.
func quoteArg(v string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
}

// NmapConnect runs a service scan, or a vulnerability scan when vuln is set.
type NmapConnect struct {
	commandBase
	vuln bool
}

// Arguments returns the nmap command line for the probe's settings.
func (c *NmapConnect) Arguments() string {
	s := c.Settings()
	parts := []string{"-sV"}
	if c.vuln {
		parts = append(parts, "--script", "vuln")
	}
	parts = append(parts, "--system-dns")
	if s.Port != 0 {
		parts = append(parts, "-p", strconv.Itoa(s.Port))
	}
	parts = append(parts, hostOf(s.Address))
	return withExtra(strings.Join(parts, " "), s)
}

// Connect implements probe.NetConnect.
func (c *NmapConnect) Connect(ctx context.Context) {
	p, ok := c.processor()
	if !ok {
		return
	}
	res, ok := c.run(ctx, p, c.Arguments())
	if !ok {
		return
	}
	if !res.Success {
		c.ProcessException("Scan failed: "+res.Message, probe.StatusError)
		return
	}

	report := ParseNmapOutput(res.Message)
	switch {
	case report.Vulnerabilities > 0:
		c.ProcessException(fmt.Sprintf("%d vulnerabilities found: %s", report.Vulnerabilities, res.Message), StatusVulnerabilitiesFound)
	case !report.HostUp:
		c.ProcessException("Host is not up: "+res.Message, StatusHostDown)
	case len(report.OpenPorts) == 0:
		c.ProcessException("No open ports found", StatusNoOpenPorts)
	default:
		c.ProcessStatus("Port/s open", c.Elapsed(), strings.Join(report.OpenPorts, ", "))
	}
}

// NmapReport is what a probe needs to know about nmap output.
type NmapReport struct {
	HostUp          bool
	OpenPorts       []string
	Vulnerabilities int
}

var (
	nmapOpenPort   = regexp.MustCompile(`(?m)^(\d+/(?:tcp|udp))\s+open\b`)
	nmapVulnState  = regexp.MustCompile(`(?m)State:\s+(?:LIKELY\s+)?VULNERABLE`)
	nmapVulnMarker = regexp.MustCompile(`\bVULNERABLE\b`)
	nmapNotVuln    = regexp.MustCompile(`\bNOT\s+VULNERABLE\b`)
)

// ParseNmapOutput extracts the host state, open ports and vulnerability
// count from nmap's normal output. Unrecognised text yields a zero report.
func ParseNmapOutput(out string) NmapReport {
	report := NmapReport{HostUp: strings.Contains(out, "Host is up")}
	for _, m := range nmapOpenPort.FindAllStringSubmatch(out, -1) {
		report.OpenPorts = append(report.OpenPorts, m[1])
	}
	report.Vulnerabilities = len(nmapVulnState.FindAllStringIndex(out, -1))
	// "NOT VULNERABLE" must not trip the bare marker.
	if report.Vulnerabilities == 0 && nmapVulnMarker.MatchString(nmapNotVuln.ReplaceAllString(out, "")) {
		report.Vulnerabilities = 1
	}
	return report
}

// CrawlConnect crawls the site behind the probe's URL.
type CrawlConnect struct {
	commandBase
	endpointType string
}

// Arguments returns "--url https://host:port/path".
func (c *CrawlConnect) Arguments() string {
	s := c.Settings()
	return withExtra("--url "+explicitURL(s, c.endpointType), s)
}

// Connect implements probe.NetConnect.
func (c *CrawlConnect) Connect(ctx context.Context) {
	p, ok := c.processor()
	if !ok {
		return
	}
	res, ok := c.run(ctx, p, c.Arguments())
	if !ok {
		return
	}
	switch {
	case !res.Success:
		c.ProcessException("Crawl command failed: "+res.Message, probe.StatusError)
	case strings.Contains(res.Message, "Error:"):
		c.ProcessException(res.Message, StatusCrawlFailed)
	default:
		c.ProcessStatus("Crawl OK", c.Elapsed(), res.Message)
	}
}

// BLEBroadcastConnect sends a keyed BLE broadcast to a device address.
// The key is the probe's password.
type BLEBroadcastConnect struct {
	commandBase
}

// Arguments returns `--address "..." --key "..."`.
func (c *BLEBroadcastConnect) Arguments() string {
	s := c.Settings()
	return withExtra("--address "+quoteArg(s.Address)+" --key "+quoteArg(s.Password), s)
}

// Connect implements probe.NetConnect.
func (c *BLEBroadcastConnect) Connect(ctx context.Context) {
	s := c.Settings()
	if strings.TrimSpace(s.Address) == "" || s.Password == "" {
		c.ProcessException("BLE broadcast needs both an address and a key", probe.StatusError)
		return
	}
	p, ok := c.processor()
	if !ok {
		return
	}
	res, ok := c.run(ctx, p, c.Arguments())
	if !ok {
		return
	}
	if !res.Success {
		c.ProcessException("Broadcast failed: "+res.Message, StatusBroadcastFailed)
		return
	}
	c.ProcessStatus("Broadcast Sent", c.Elapsed(), res.Message)
}

// BLEListenConnect waits for a BLE broadcast. Address and key are optional.
type BLEListenConnect struct {
	commandBase
}

// Arguments returns the optional `--address` and `--key` pairs.
func (c *BLEListenConnect) Arguments() string {
	s := c.Settings()
	var parts []string
	if a := strings.TrimSpace(s.Address); a != "" {
		parts = append(parts, "--address", quoteArg(a))
	}
	if s.Password != "" {
		parts = append(parts, "--key", quoteArg(s.Password))
	}
	return withExtra(strings.Join(parts, " "), s)
}

// Connect implements probe.NetConnect.
func (c *BLEListenConnect) Connect(ctx context.Context) {
	p, ok := c.processor()
	if !ok {
		return
	}
	res, ok := c.run(ctx, p, strings.TrimSpace(c.Arguments()))
	if !ok {
		return
	}
	if !res.Success {
		c.ProcessException("Listen failed: "+res.Message, StatusListenFailed)
		return
	}
	c.ProcessStatus("Broadcast Received", c.Elapsed(), res.Message)
}

// keepAliveFailurePhrases mark a command that ran but did not wake the site.
var keepAliveFailurePhrases = []string{
	"did not become ready",
	"not responding",
	"timed out",
}

// KeepAliveConnect keeps a sleeping hosted application awake.
type KeepAliveConnect struct {
	commandBase
	endpointType string
}

// Arguments returns "--url https://host:port/path".
func (c *KeepAliveConnect) Arguments() string {
	s := c.Settings()
	return withExtra("--url "+explicitURL(s, c.endpointType), s)
}

// Connect implements probe.NetConnect. The run succeeds only when the
// command succeeded and its message has none of the failure phrases.
func (c *KeepAliveConnect) Connect(ctx context.Context) {
	p, ok := c.processor()
	if !ok {
		return
	}
	res, ok := c.run(ctx, p, c.Arguments())
	if !ok {
		return
	}
	if !res.Success || hasFailurePhrase(res.Message) {
		c.ProcessException("Keep alive failed: "+res.Message, StatusKeepAliveFailed)
		return
	}
	c.ProcessStatus("Site Keep Alive OK", c.Elapsed(), res.Message)
}

func hasFailurePhrase(msg string) bool {
	lower := strings.ToLower(msg)
	for _, phrase := range keepAliveFailurePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
