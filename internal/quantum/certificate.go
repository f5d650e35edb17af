package quantum

import (
	"crypto/x509"
	"encoding/asn1"
	"encoding/pem"
	"strings"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// CertificateSummary describes the leaf certificate a server presented.
type CertificateSummary struct {
	Subject     string    `json:"subject"`
	Issuer      string    `json:"issuer,omitempty"`
	NotAfter    time.Time `json:"not_after,omitempty"`
	ChainLength int       `json:"chain_length"`

	SignatureAlgorithm   string `json:"signature_algorithm"`
	PublicKeyAlgorithm   string `json:"public_key_algorithm"`
	SignatureQuantumSafe bool   `json:"signature_quantum_safe"`
	PublicKeyQuantumSafe bool   `json:"public_key_quantum_safe"`
}

// String renders the summary for probe messages.
func (s CertificateSummary) String() string {
	var b strings.Builder
	b.WriteString("cert ")
	b.WriteString(s.Subject)
	b.WriteString(" sig=")
	b.WriteString(s.SignatureAlgorithm)
	if s.SignatureQuantumSafe {
		b.WriteString("(pq)")
	}
	b.WriteString(" key=")
	b.WriteString(s.PublicKeyAlgorithm)
	if s.PublicKeyQuantumSafe {
		b.WriteString("(pq)")
	}
	return b.String()
}

// Post-quantum algorithm identifiers from the NIST CSOR arc.
var pqAlgorithmNames = map[string]string{
	"2.16.840.1.101.3.4.3.17": "ML-DSA-44",
	"2.16.840.1.101.3.4.3.18": "ML-DSA-65",
	"2.16.840.1.101.3.4.3.19": "ML-DSA-87",
	"2.16.840.1.101.3.4.3.20": "SLH-DSA-SHA2-128s",
	"2.16.840.1.101.3.4.3.21": "SLH-DSA-SHA2-128f",
	"2.16.840.1.101.3.4.3.22": "SLH-DSA-SHA2-192s",
	"2.16.840.1.101.3.4.3.23": "SLH-DSA-SHA2-192f",
	"2.16.840.1.101.3.4.3.24": "SLH-DSA-SHA2-256s",
	"2.16.840.1.101.3.4.3.25": "SLH-DSA-SHA2-256f",
	"2.16.840.1.101.3.4.3.26": "SLH-DSA-SHAKE-128s",
	"2.16.840.1.101.3.4.3.27": "SLH-DSA-SHAKE-128f",
	"2.16.840.1.101.3.4.3.28": "SLH-DSA-SHAKE-192s",
	"2.16.840.1.101.3.4.3.29": "SLH-DSA-SHAKE-192f",
	"2.16.840.1.101.3.4.3.30": "SLH-DSA-SHAKE-256s",
	"2.16.840.1.101.3.4.3.31": "SLH-DSA-SHAKE-256f",
	"2.16.840.1.101.3.4.4.1":  "ML-KEM-512",
	"2.16.840.1.101.3.4.4.2":  "ML-KEM-768",
	"2.16.840.1.101.3.4.4.3":  "ML-KEM-1024",
}

// compositePrefix is the arc of the composite ML-DSA drafts.
const compositePrefix = "2.16.840.1.114027.80.8.1."

func isQuantumSafeOID(oid asn1.ObjectIdentifier) bool {
	s := oid.String()
	if _, ok := pqAlgorithmNames[s]; ok {
		return true
	}
	return strings.HasPrefix(s, compositePrefix)
}

func algorithmName(oid asn1.ObjectIdentifier, known string) string {
	if name, ok := pqAlgorithmNames[oid.String()]; ok {
		return name
	}
	if known != "" {
		return known
	}
	return oid.String()
}

// TryBuildSummary finds PEM certificates in tool output and summarises the
// first one. It returns false when the output has no parsable certificate.
func TryBuildSummary(output string) (CertificateSummary, bool) {
	var blocks []*pem.Block
	rest := []byte(output)
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			blocks = append(blocks, block)
		}
	}
	if len(blocks) == 0 {
		return CertificateSummary{}, false
	}

	leaf := blocks[0].Bytes
	sigOID, keyOID, ok := certificateOIDs(leaf)
	if !ok {
		return CertificateSummary{}, false
	}

	summary := CertificateSummary{
		ChainLength:          len(blocks),
		SignatureQuantumSafe: isQuantumSafeOID(sigOID),
		PublicKeyQuantumSafe: isQuantumSafeOID(keyOID),
	}

	var sigName, keyName string
	if cert, err := x509.ParseCertificate(leaf); err == nil {
		summary.Subject = cert.Subject.String()
		summary.Issuer = cert.Issuer.String()
		summary.NotAfter = cert.NotAfter
		if cert.SignatureAlgorithm != x509.UnknownSignatureAlgorithm {
			sigName = cert.SignatureAlgorithm.String()
		}
		if cert.PublicKeyAlgorithm != x509.UnknownPublicKeyAlgorithm {
			keyName = cert.PublicKeyAlgorithm.String()
		}
	}
	summary.SignatureAlgorithm = algorithmName(sigOID, sigName)
	summary.PublicKeyAlgorithm = algorithmName(keyOID, keyName)

	return summary, true
}

// certificateOIDs reads the outer signature algorithm and the subject public
// key algorithm straight from the DER, so certificates whose algorithms
// crypto/x509 does not know still classify.
func certificateOIDs(der []byte) (sigOID, keyOID asn1.ObjectIdentifier, ok bool) {
	input := cryptobyte.String(der)

	var cert, tbs, sigAlg cryptobyte.String
	if !input.ReadASN1(&cert, cbasn1.SEQUENCE) ||
		!cert.ReadASN1(&tbs, cbasn1.SEQUENCE) ||
		!cert.ReadASN1(&sigAlg, cbasn1.SEQUENCE) ||
		!sigAlg.ReadASN1ObjectIdentifier(&sigOID) {
		return nil, nil, false
	}

	// version [0] EXPLICIT, serial, signature, issuer, validity, subject
	if !tbs.SkipOptionalASN1(cbasn1.Tag(0).Constructed().ContextSpecific()) ||
		!tbs.SkipASN1(cbasn1.INTEGER) ||
		!tbs.SkipASN1(cbasn1.SEQUENCE) ||
		!tbs.SkipASN1(cbasn1.SEQUENCE) ||
		!tbs.SkipASN1(cbasn1.SEQUENCE) ||
		!tbs.SkipASN1(cbasn1.SEQUENCE) {
		return nil, nil, false
	}

	var spki, keyAlg cryptobyte.String
	if !tbs.ReadASN1(&spki, cbasn1.SEQUENCE) ||
		!spki.ReadASN1(&keyAlg, cbasn1.SEQUENCE) ||
		!keyAlg.ReadASN1ObjectIdentifier(&keyOID) {
		return nil, nil, false
	}

	return sigOID, keyOID, true
}
