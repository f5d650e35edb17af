// Package database provides SQLite-based storage for probe history.
//
// ResultDB stores:
//   - every probe result, tagged with the poll cycle that produced it
//   - the latest content hash of each site hash probe, so hashes survive
//     a restart
//
// Design decision: SQLite through modernc.org/sqlite keeps the agent a
// single CGO-free binary with its history in one file. WAL mode lets the
// history command read while a running agent writes.
package database
