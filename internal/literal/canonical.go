package literal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces a deterministic JSON-like encoding of v used for
// fingerprinting. Unlike RFC 8785, table keys are NOT sorted: document order
// is meaningful (it drives declaration and field order), so reordering keys
// must change the fingerprint.
//
// Text is NFC normalized and HTML escaping is disabled. The absent literal
// encodes as null.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case Text:
		s, err := marshalCanonicalString(string(val))
		if err != nil {
			return err
		}
		buf.Write(s)
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case List:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Table:
		buf.WriteByte('{')
		for i, e := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := marshalCanonicalString(e.Key)
			if err != nil {
				return fmt.Errorf("key %q: %w", e.Key, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeCanonical(buf, e.Value); err != nil {
				return fmt.Errorf("[%q]: %w", e.Key, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported literal type: %T", v)
	}
	return nil
}

// marshalCanonicalString produces a JSON string with NFC normalization and no
// HTML escaping.
func marshalCanonicalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
