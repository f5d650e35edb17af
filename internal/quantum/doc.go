// Package quantum decides whether a TLS server negotiates a post-quantum or
// hybrid key exchange.
//
// The analyzer drives an external TLS client (openssl s_client by default)
// once per candidate key-exchange group, extracts the ServerHello bytes the
// client printed, and reads the group ID from the key_share extension. A
// handshake counts as quantum safe when the server picked the very group
// that was offered and that group is in the quantum-safe GroupTable.
//
// Design decision: Parsing never fails loudly. Output from external tools
// is untrusted and varies between versions, so every decode problem yields
// the zero KemExtension (GroupID 0, not quantum safe) instead of an error
// reaching the probe.
//
// Design decision: The quantum-safe group IDs come from the IANA TLS
// Supported Groups registry and change as drafts are finalised. They live
// in a versioned GroupTable that can be loaded from YAML and swapped at
// runtime rather than in a constant set.
package quantum
