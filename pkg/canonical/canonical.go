// Copyright 2025 Certen Protocol
//
// Canonical JSON encoding shared by clauses, receipts, and verdicts.
// Adapted from the governance commitment codec: key order is sorted at
// every object level, arrays preserve order, and integral floats collapse
// to integers so that 5 and 5.0 hash identically.

package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
)

// Marshal encodes v as canonical JSON bytes: sorted object keys, no
// insignificant whitespace, integral floats normalized to integers, and
// high-precision numbers preserved at full literal precision.
func Marshal(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	return CanonicalizeJSON(raw)
}

// CanonicalizeJSON re-encodes arbitrary JSON bytes into canonical form.
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canonical: decode: %w", err)
	}

	var buf bytes.Buffer
	if err := writeValue(&buf, normalize(v)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalize walks a decoded value, sorting map keys and normalizing
// json.Number tokens. Arrays keep their original order.
func normalize(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make([]keyedValue, len(keys))
		for i, k := range keys {
			ordered[i] = keyedValue{key: k, value: normalize(vv[k])}
		}
		return orderedObject(ordered)
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, e := range vv {
			out[i] = normalize(e)
		}
		return out
	case json.Number:
		return normalizeNumber(vv)
	default:
		return vv
	}
}

// normalizeNumber collapses integral floats (e.g. "5.0", "5e0") to their
// plain integer literal, and otherwise preserves the original digits
// verbatim so arbitrary-precision decimals never lose precision.
func normalizeNumber(n json.Number) json.Number {
	s := string(n)
	f, ok := new(big.Float).SetPrec(256).SetString(s)
	if !ok {
		return n
	}
	if f.IsInt() {
		i, _ := f.Int(nil)
		return json.Number(i.String())
	}
	return n
}

type keyedValue struct {
	key   string
	value interface{}
}

// orderedObject marks a key-sorted object so writeValue renders it without
// re-sorting (map[string]interface{} iteration order is not guaranteed).
type orderedObject []keyedValue

func writeValue(buf *bytes.Buffer, v interface{}) error {
	switch vv := v.(type) {
	case orderedObject:
		buf.WriteByte('{')
		for i, kv := range vv {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyJSON, err := json.Marshal(kv.key)
			if err != nil {
				return err
			}
			buf.Write(keyJSON)
			buf.WriteByte(':')
			if err := writeValue(buf, kv.value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []interface{}:
		buf.WriteByte('[')
		for i, e := range vv {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case json.Number:
		buf.WriteString(string(vv))
		return nil
	default:
		enc, err := json.Marshal(vv)
		if err != nil {
			return fmt.Errorf("canonical: marshal leaf: %w", err)
		}
		buf.Write(enc)
		return nil
	}
}

// WithoutFields returns a shallow copy of m with the given keys removed,
// used to exclude self-referential hash/signature fields before hashing.
func WithoutFields(m map[string]interface{}, skip ...string) map[string]interface{} {
	drop := make(map[string]struct{}, len(skip))
	for _, k := range skip {
		drop[k] = struct{}{}
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if _, skipped := drop[k]; skipped {
			continue
		}
		out[k] = v
	}
	return out
}

// ToMap round-trips v through JSON to obtain a map[string]interface{}
// suitable for WithoutFields, preserving json struct tags.
func ToMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal to map: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("canonical: decode to map: %w", err)
	}
	return m, nil
}
