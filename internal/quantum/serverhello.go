package quantum

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/cryptobyte"
)

const (
	serverHelloMarker        = "ServerHello"
	handshakeTypeServerHello = 0x02
	serverRandomLength       = 32

	// ExtensionKeyShare is the TLS key_share extension type.
	ExtensionKeyShare uint16 = 0x0033
)

// KemExtension is the key-exchange information decoded from a ServerHello.
// The zero value means "nothing recognised" and is never quantum safe.
type KemExtension struct {
	// GroupHexStringID is GroupID formatted as "0x11EB".
	GroupHexStringID string `json:"group_hex_id,omitempty"`

	// GroupID is the negotiated named group, or 0.
	GroupID uint16 `json:"group_id"`

	// KeyShareLength and KeyShare hold the server key-exchange payload.
	KeyShareLength int    `json:"key_share_length"`
	KeyShare       []byte `json:"-"`

	IsQuantumSafe bool `json:"is_quantum_safe"`

	// IsLongServerHello is set when bytes followed the declared handshake
	// length, which happens when the tool printed several records as one
	// block. The decode may then be wrong.
	IsLongServerHello bool `json:"is_long_server_hello"`
}

// FindServerHello locates the ServerHello in tool output and decodes its
// key_share extension against the current group table. Any failure yields
// the zero KemExtension.
func FindServerHello(output string) KemExtension {
	return FindServerHelloWithTable(output, CurrentGroupTable())
}

// FindServerHelloWithTable is FindServerHello with an explicit group table.
func FindServerHelloWithTable(output string, table *GroupTable) KemExtension {
	data, err := extractServerHello(output)
	if err != nil {
		return KemExtension{}
	}
	kem, _ := ParseServerHello(data, table) //nolint:errcheck // zero value on failure
	return kem
}

// extractServerHello returns the hex bytes printed after the ServerHello
// marker. openssl -msg prints a header line containing the marker followed
// by indented lines of space separated hex bytes; a single unbroken hex
// string after the marker is accepted too.
func extractServerHello(output string) ([]byte, error) {
	idx := strings.Index(output, serverHelloMarker)
	if idx < 0 {
		return nil, ErrNoServerHello
	}

	lines := strings.Split(output[idx+len(serverHelloMarker):], "\n")
	var data []byte

	for i, line := range lines {
		line = strings.TrimSpace(strings.TrimLeft(line, ":"))
		if line == "" {
			if len(data) > 0 {
				break
			}
			continue
		}

		decoded, ok := decodeHexLine(line)
		if !ok {
			// Trailing text on the marker line is a header, not payload.
			if i == 0 {
				continue
			}
			break
		}
		data = append(data, decoded...)
	}

	if len(data) == 0 {
		return nil, ErrNoServerHello
	}
	return data, nil
}

func decodeHexLine(line string) ([]byte, bool) {
	var out []byte
	for _, tok := range strings.Fields(line) {
		if len(tok)%2 != 0 {
			return nil, false
		}
		b, err := hex.DecodeString(tok)
		if err != nil {
			return nil, false
		}
		out = append(out, b...)
	}
	return out, len(out) > 0
}

// ParseServerHello decodes a raw ServerHello handshake message:
//
//	type(1)=0x02 length(3) version(2) random(32) session_id<0..32>
//	cipher_suite(2) compression(1) extensions<0..2^16-1>
//
// and returns the decoded key_share. The error explains why no key_share
// was found; the returned KemExtension is safe to use either way.
func ParseServerHello(data []byte, table *GroupTable) (KemExtension, error) {
	s := cryptobyte.String(data)

	var msgType uint8
	if !s.ReadUint8(&msgType) {
		return KemExtension{}, ErrTruncatedServerHello
	}
	if msgType != handshakeTypeServerHello {
		return KemExtension{}, ErrNotServerHello
	}

	var body cryptobyte.String
	if !s.ReadUint24LengthPrefixed(&body) {
		return KemExtension{}, ErrTruncatedServerHello
	}
	long := !s.Empty()

	var (
		version     uint16
		random      []byte
		sessionID   cryptobyte.String
		cipherSuite uint16
		compression uint8
	)
	if !body.ReadUint16(&version) ||
		!body.ReadBytes(&random, serverRandomLength) ||
		!body.ReadUint8LengthPrefixed(&sessionID) ||
		!body.ReadUint16(&cipherSuite) ||
		!body.ReadUint8(&compression) {
		return KemExtension{IsLongServerHello: long}, ErrTruncatedServerHello
	}

	if body.Empty() {
		return KemExtension{IsLongServerHello: long}, ErrNoKeyShare
	}

	var extensions cryptobyte.String
	if !body.ReadUint16LengthPrefixed(&extensions) {
		return KemExtension{IsLongServerHello: long}, ErrTruncatedServerHello
	}

	for !extensions.Empty() {
		var (
			extType uint16
			payload cryptobyte.String
		)
		if !extensions.ReadUint16(&extType) || !extensions.ReadUint16LengthPrefixed(&payload) {
			return KemExtension{IsLongServerHello: long}, ErrTruncatedServerHello
		}
		if extType == ExtensionKeyShare {
			kem := DecodeKeyShareExtension(extType, payload, table)
			kem.IsLongServerHello = long
			return kem, nil
		}
	}

	return KemExtension{IsLongServerHello: long}, ErrNoKeyShare
}

// DecodeKeyShareExtension decodes the payload of one extension. Only the
// key_share type is decoded; any other type yields the zero value. The
// payload is group(2) followed by an optional length-prefixed key
// exchange (absent in a HelloRetryRequest).
func DecodeKeyShareExtension(extType uint16, payload []byte, table *GroupTable) KemExtension {
	if extType != ExtensionKeyShare {
		return KemExtension{}
	}
	if table == nil {
		table = CurrentGroupTable()
	}

	s := cryptobyte.String(payload)
	var group uint16
	if !s.ReadUint16(&group) {
		return KemExtension{}
	}

	var key []byte
	rest := s
	var prefixed cryptobyte.String
	if rest.ReadUint16LengthPrefixed(&prefixed) && rest.Empty() {
		key = []byte(prefixed)
	} else {
		key = []byte(s)
	}

	return KemExtension{
		GroupHexStringID: fmt.Sprintf("0x%04X", group),
		GroupID:          group,
		KeyShareLength:   len(key),
		KeyShare:         key,
		IsQuantumSafe:    table.IsQuantumSafe(group),
	}
}
