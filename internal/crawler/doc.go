// Package crawler walks a web site from a start URL and records the
// outcome of every page it fetches. The crawl probe uses it to detect
// broken pages and links on a monitored site; the browser host reuses
// its HTML parser to extract page titles and visible text.
//
// The Spider stays on the start host, honours depth and page limits and
// paces requests with a token bucket so that a monitoring crawl never
// floods the site it watches.
package crawler
