package literal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for document fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainSchema = "retro/schema/v1"
	DomainRules  = "retro/rules/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + part + 0x00 + part ...)
func hashWithDomain(domain string, parts ...[]byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write([]byte{0x00})
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the opaque content fingerprint of a decoded document.
// Additional salts (generator version, the operator document fingerprint for
// rule documents) are mixed in so that a change to any of them invalidates
// the cached result.
func Fingerprint(domain string, doc Value, salts ...string) (string, error) {
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	parts := make([][]byte, 0, len(salts)+1)
	parts = append(parts, canonical)
	for _, s := range salts {
		parts = append(parts, []byte(s))
	}
	return hashWithDomain(domain, parts...), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(domain string, doc Value, salts ...string) string {
	fp, err := Fingerprint(domain, doc, salts...)
	if err != nil {
		panic(err)
	}
	return fp
}
