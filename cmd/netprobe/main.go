// Package main provides the entry point for the netprobe CLI.
//
// netprobe monitors a list of network endpoints (ICMP, DNS, HTTP, SMTP,
// TCP, nmap, crawl, BLE, keep-alive, site hash and quantum-safe TLS) in
// periodic poll cycles and keeps the results in a local history.
//
// Usage:
//
//	netprobe init
//	netprobe run
//	netprobe check --type http --address https://example.com
//	netprobe history --id 1
//
// See --help for all available options.
package main

// main is the entry point for netprobe.
func main() {
	Execute()
}
