package kv

import "encoding/binary"

// Namespace returns the region prefix for name: a big-endian uint16 length
// followed by the name bytes. Length-prefixing keeps "ab"+"c" and "a"+"bc"
// in distinct regions.
func Namespace(name string) []byte {
	return LengthPrefixed([]byte(name))
}

// LengthPrefixed prepends a big-endian uint16 length to b. It is used for
// every non-terminal element of a composite key.
func LengthPrefixed(b []byte) []byte {
	out := make([]byte, 2+len(b))
	binary.BigEndian.PutUint16(out, uint16(len(b)))
	copy(out[2:], b)
	return out
}

// Uint64Bytes encodes v big-endian so numeric order matches byte order.
func Uint64Bytes(v uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, v)
	return out
}

// Join concatenates key parts into a fresh slice.
func Join(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// PrefixEnd returns the smallest key greater than every key starting with
// prefix, or nil when no such key exists (prefix is empty or all 0xff).
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// Uint64Key is a KeyFunc for numeric ids.
func Uint64Key(v uint64) []byte { return Uint64Bytes(v) }

// StringKey is a KeyFunc for addresses and derived session keys.
func StringKey(s string) []byte { return []byte(s) }
