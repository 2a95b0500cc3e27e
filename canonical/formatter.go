// Package canonical implements a deterministic, byte-exact JSON encoding:
// object keys are sorted lexicographically, there is no insignificant
// whitespace, numbers use their minimal form, and strings use Go's standard
// escaping. Two semantically equal documents always encode to the same
// bytes, which is the property identity blobs are content-addressed on.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Marshal encodes v into its canonical byte form. v (or its nested values)
// must be JSON-marshalable; maps become objects with sorted keys.
func Marshal(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical: decode for canonicalization: %w", err)
	}
	var buf bytes.Buffer
	if err := encodeValue(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Equal reports whether the canonical encodings of a and b are byte-identical.
func Equal(a, b []byte) (bool, error) {
	ca, err := canonicalizeBytes(a)
	if err != nil {
		return false, err
	}
	cb, err := canonicalizeBytes(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ca, cb), nil
}

// canonicalizeBytes re-encodes already-serialized JSON into its canonical
// form; for input that is already canonical the output equals the input
// (the I2 round-trip property, encode(decode(x)) == x).
func canonicalizeBytes(raw []byte) ([]byte, error) {
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical: decode: %w", err)
	}
	var buf bytes.Buffer
	if err := encodeValue(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			// Re-render non-integer literals (1.0, 1e2) in encoding/json's
			// shortest float form (1, 100).
			f, err := val.Float64()
			if err != nil {
				return fmt.Errorf("canonical: number %s: %w", s, err)
			}
			b, err := json.Marshal(f)
			if err != nil {
				return fmt.Errorf("canonical: number %s: %w", s, err)
			}
			s = string(b)
		}
		buf.WriteString(s)
	case string:
		encodeString(buf, val)
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeString(buf, k)
			buf.WriteByte(':')
			if err := encodeValue(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonical: unsupported value type %T", v)
	}
	return nil
}

// encodeString writes s using Go's standard JSON string escaping with HTML
// escaping disabled, producing minimal, deterministic escapes (no \uXXXX for
// ASCII printable characters other than the mandatory quote/backslash/
// control escapes).
func encodeString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	// Encoder.Encode appends a trailing newline; trim it below.
	_ = enc.Encode(s)
	b := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))
	buf.Write(b)
}
