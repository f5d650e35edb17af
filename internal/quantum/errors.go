package quantum

import "errors"

// ServerHello decoding errors. They are informational; FindServerHello
// maps all of them to the zero KemExtension.
var (
	// ErrNoServerHello is returned when the ServerHello marker or its hex
	// payload is missing from the tool output.
	ErrNoServerHello = errors.New("no ServerHello found in output")

	// ErrNotServerHello is returned when the handshake type byte is not 0x02.
	ErrNotServerHello = errors.New("handshake message is not a ServerHello")

	// ErrTruncatedServerHello is returned when a length field runs past the data.
	ErrTruncatedServerHello = errors.New("truncated ServerHello")

	// ErrNoKeyShare is returned when the ServerHello carries no key_share extension.
	ErrNoKeyShare = errors.New("ServerHello has no key_share extension")

	// ErrEmptyGroupTable is returned by LoadGroupTable for a file without groups.
	ErrEmptyGroupTable = errors.New("group table has no groups")

	// ErrUnknownGroup is returned by Analyzer.Validate for an enabled
	// algorithm whose group ID is not in the group table.
	ErrUnknownGroup = errors.New("algorithm group is not in the group table")
)
