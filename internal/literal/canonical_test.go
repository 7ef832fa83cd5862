package literal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	doc := Table{
		{Key: "Type", Value: Text("Enum")},
		{Key: "a", Value: Table{{Key: "size", Value: Int(-3)}}},
		{Key: "b", Value: List{Bool(true), nil, Text("<x&y>")}},
	}

	out, err := MarshalCanonical(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"Type":"Enum","a":{"size":-3},"b":[true,null,"<x&y>"]}`, string(out))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	decomposed, err := MarshalCanonical(Text("e\u0301"))
	require.NoError(t, err)
	composed, err := MarshalCanonical(Text("\u00e9"))
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestFingerprintDeterminism(t *testing.T) {
	doc := Table{{Key: "a", Value: List{Text("x"), Text("y")}}}

	fp1, err := Fingerprint(DomainSchema, doc, "1.0.0")
	require.NoError(t, err)
	fp2, err := Fingerprint(DomainSchema, doc, "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 64, "SHA-256 hex is 64 characters")
}

func TestFingerprintChangesWithInput(t *testing.T) {
	doc := Table{{Key: "a", Value: Int(1)}, {Key: "b", Value: Int(2)}}
	reordered := Table{{Key: "b", Value: Int(2)}, {Key: "a", Value: Int(1)}}

	base := MustFingerprint(DomainSchema, doc)
	assert.NotEqual(t, base, MustFingerprint(DomainSchema, reordered), "key order is significant")
	assert.NotEqual(t, base, MustFingerprint(DomainRules, doc), "domain separates fingerprints")
	assert.NotEqual(t, base, MustFingerprint(DomainSchema, doc, "salt"), "salts change fingerprints")
}
