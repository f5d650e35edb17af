// Package probe defines the lifecycle every protocol-specific probe follows.
//
// A probe run moves through three calls in strict order:
//
//	ctx = nc.PreConnect(parent)   // Idle -> Running, fresh Result, timeout scope
//	nc.Connect(ctx)               // protocol exchange, ends in ProcessStatus or ProcessException
//	nc.PostConnect()              // Running -> Idle, timeout scope released
//
// Run wraps the three calls, enforces single-flight per Handle, and converts
// a panic or a Connect that forgot to record an outcome into a terminal
// failure, so callers always read a complete Result.
//
// Design decision: Config is a plain Settings struct behind a sync.RWMutex.
// Every poll cycle reads the settings of every probe while edits arrive
// rarely, so readers share the lock and an updater swaps the whole struct at
// once. A reader therefore sees either the old or the new settings, never a
// mix.
package probe
