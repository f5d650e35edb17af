package command

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/netprobe/internal/crawler"
)

// maxReportedFailures bounds the failure lines in a crawl message.
const maxReportedFailures = 10

// CrawlProcessor crawls the site named by "--url" and reports broken
// pages with an "Error:" prefix so the crawl probe can flag them.
type CrawlProcessor struct {
	client *http.Client
	opts   []crawler.SpiderOption
}

// NewCrawlProcessor creates a processor crawling with client.
func NewCrawlProcessor(client *http.Client, opts ...crawler.SpiderOption) *CrawlProcessor {
	return &CrawlProcessor{client: client, opts: opts}
}

// Run implements Processor.
func (p *CrawlProcessor) Run(ctx context.Context, args string) Result {
	parsed, err := SplitArgs(args)
	if err != nil {
		return Result{Message: fmt.Sprintf("Error: %v", err)}
	}
	target, ok := FlagValue(parsed, "--url")
	if !ok || target == "" {
		return Result{Message: "Error: missing --url argument"}
	}

	report, err := crawler.NewSpider(p.client, p.opts...).Crawl(ctx, target)
	if report == nil {
		return Result{Message: fmt.Sprintf("Error: %v", err)}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Crawled %d pages in %s", len(report.Pages), report.Elapsed.Round(time.Millisecond))
	if report.Truncated {
		b.WriteString(" (page limit reached)")
	}

	failures := report.Failures()
	for i, f := range failures {
		if i == maxReportedFailures {
			fmt.Fprintf(&b, "\nError: %d more failed pages", len(failures)-i)
			break
		}
		fmt.Fprintf(&b, "\nError: %s %s", f.URL, describeFailure(f))
		if f.Referrer != "" {
			fmt.Fprintf(&b, " (linked from %s)", f.Referrer)
		}
	}

	if err != nil {
		return Result{Message: fmt.Sprintf("Error: crawl interrupted: %v\n%s", err, b.String())}
	}
	return Result{Success: true, Message: b.String()}
}

func describeFailure(p crawler.PageResult) string {
	if p.Err != nil {
		return p.Err.Error()
	}
	return fmt.Sprintf("status %d", p.StatusCode)
}
