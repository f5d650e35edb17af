package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Parser extracts the title, visible text and links of an HTML document.
//
// Design decision: golang.org/x/net/html is used instead of regular
// expressions because monitored pages are often malformed HTML.
type Parser struct {
	baseURL *url.URL
}

// ParseResult is everything Parser extracts in one pass.
type ParseResult struct {
	Title string

	// Text is the whitespace-collapsed visible text of the body. Script,
	// style and noscript contents are excluded.
	Text string

	// Links holds every resolved anchor target; InternalLinks is the subset
	// on the base host, ExternalLinks the rest.
	Links         []string
	InternalLinks []string
	ExternalLinks []string

	// Assets are resolved script, image and stylesheet URLs.
	Assets []string
}

// NewParser creates a parser resolving relative URLs against baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse reads an HTML document.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{}
	var text strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				if src := getAttr(n, "src"); src != "" {
					p.addAsset(result, src)
				}
				return
			case "title":
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode && result.Title == "" {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
			p.processElement(n, result)
		case html.TextNode:
			text.WriteString(n.Data)
			text.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	result.Text = strings.Join(strings.Fields(text.String()), " ")
	return result, nil
}

func (p *Parser) processElement(n *html.Node, result *ParseResult) {
	switch n.Data {
	case "a":
		if resolved := p.resolveURL(getAttr(n, "href")); resolved != "" {
			result.Links = append(result.Links, resolved)
			if p.isInternal(resolved) {
				result.InternalLinks = append(result.InternalLinks, resolved)
			} else {
				result.ExternalLinks = append(result.ExternalLinks, resolved)
			}
		}
	case "img":
		p.addAsset(result, getAttr(n, "src"))
	case "link":
		if rel := strings.ToLower(getAttr(n, "rel")); rel == "stylesheet" || strings.Contains(rel, "icon") {
			p.addAsset(result, getAttr(n, "href"))
		}
	}
}

func (p *Parser) addAsset(result *ParseResult, ref string) {
	if resolved := p.resolveURL(ref); resolved != "" {
		result.Assets = append(result.Assets, resolved)
	}
}

// resolveURL resolves href against the base URL, dropping non-HTTP schemes
// and bare fragments.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(strings.ToLower(href), prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := p.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

func (p *Parser) isInternal(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, p.baseURL.Host)
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
