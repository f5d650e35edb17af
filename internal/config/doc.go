// Package config provides the runtime configuration of netprobe and the
// .netprobe probe file: settings, filter strategies, command processors,
// crawl limits, quantum analyzer overrides and the probe list.
package config
