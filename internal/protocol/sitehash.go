package protocol

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/netprobe/internal/browser"
	"github.com/nao1215/netprobe/internal/probe"
)

// Site hash statuses.
const (
	StatusSiteHashInitialized = "SiteHash initialized"
	StatusSiteHashOK          = "SiteHash OK"
	StatusSiteHashMismatch    = "SiteHash Mismatch"
)

// SiteHashConnect detects content changes by hashing the visible text of a
// page and comparing it with the hash stored on the probe's config.
type SiteHashConnect struct {
	*probe.Base
	browser      browser.Host
	endpointType string
}

// Connect implements probe.NetConnect.
func (c *SiteHashConnect) Connect(ctx context.Context) {
	target := targetURL(c.Settings(), c.endpointType)
	if c.browser == nil {
		c.ProcessException("Browser is missing, cannot hash "+target, StatusBrowserMissing)
		return
	}

	var status int
	text, err := c.browser.RunWithPage(ctx, func(ctx context.Context, page browser.Page) (string, error) {
		var err error
		if status, err = page.Goto(ctx, target); err != nil {
			return "", err
		}
		return page.Text()
	})
	if status != 0 {
		c.SetStatusCode(status)
	}
	switch {
	case err == nil:
	case probe.IsTimeout(ctx, err):
		c.ProcessTimeout("loading " + target)
		return
	case errors.Is(err, browser.ErrHTTPStatus):
		c.ProcessException(fmt.Sprintf("Unexpected status %d from %s", status, target), strconv.Itoa(status))
		return
	default:
		c.ProcessException("Failed to load page: "+err.Error(), probe.StatusException)
		return
	}

	hash := HashContent(text)
	config := c.Handle().Config()
	stored := config.SiteHash()
	rtt := c.Elapsed()

	switch {
	case stored == "":
		config.SetSiteHash(hash)
		c.ProcessStatus(StatusSiteHashInitialized, rtt, hash)
	case stored == hash:
		c.ProcessStatus(StatusSiteHashOK, rtt)
	default:
		c.ProcessException(fmt.Sprintf("SiteHash mismatch: expected %s, got %s", stored, hash), StatusSiteHashMismatch)
	}
}

// HashContent returns the hex SHA3-256 digest of a page snapshot.
func HashContent(text string) string {
	sum := sha3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
