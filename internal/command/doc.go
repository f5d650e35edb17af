// Package command runs the external tools behind command-backed probes.
//
// A Processor receives a probe's CLI-style argument string and returns a
// Result carrying a success flag and a textual message. Probe variants
// look processors up by name through a Provider; a missing processor is a
// reported probe failure, not an error.
//
// Three processors ship with netprobe: ExecProcessor runs an operator
// configured binary (nmap, a BLE helper), CrawlProcessor crawls a site
// with the crawler package, and KeepAliveProcessor polls a URL until the
// site answers.
package command
