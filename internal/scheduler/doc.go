// Package scheduler owns the set of probes and drives them in poll cycles.
//
// A Collection holds one probe.NetConnect per monitored entity, keyed by
// entity ID. Filter strategies spread probes of one endpoint type across
// several cycles, and long-running probes pass through a bounded gate so
// only a limited number of slow scans run at once.
//
// A Scheduler runs one cycle at a time: normal probes fan out on an
// errgroup with a concurrency limit, long-running probes are handed to the
// gate in the background, and every finished result goes to a callback.
package scheduler
