// Package protocol holds the probe variants, one per endpoint type, and
// the Factory that builds them.
//
// Every variant embeds *probe.Base and implements only Connect. Connect
// never returns an error: each path ends in ProcessStatus or
// ProcessException so the result record always has a terminal state.
//
// Variants talk to the outside world through collaborators injected into
// the Factory (Pinger, Resolver, transport.Dialer, *http.Client,
// browser.Host, command.Provider, quantum.Analyzer) so tests can replace
// any of them.
package protocol
