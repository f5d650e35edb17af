// Package model defines the status report built from probe results.
//
// This package contains the following main types:
//   - Health: the grade of one result (down, or a response-time band)
//   - ProbeEntry: one result enriched with endpoint metadata
//   - StatusReport: counts and ordered entries for display
//
// Design decision: We separate the report model from the writers in the
// report package so that the CLI can build reports from live cycle results
// and from stored history with the same type.
package model
