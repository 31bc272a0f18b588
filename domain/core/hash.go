package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex characters, used in report headers.
func (h Hash) Short() string {
	if len(h) < 12 {
		return string(h)
	}
	return string(h[:12])
}

// Fingerprint accumulates values into a SHA-256 digest so that a report can
// state exactly which inputs produced it.
type Fingerprint struct {
	buf []byte
}

// AddFloats appends the IEEE-754 bits of each value. NaN payloads are
// canonicalised so that every NaN hashes the same.
func (f *Fingerprint) AddFloats(values []float64) {
	var b [8]byte
	for _, v := range values {
		bits := math.Float64bits(v)
		if math.IsNaN(v) {
			bits = 0x7FF8000000000001
		}
		binary.LittleEndian.PutUint64(b[:], bits)
		f.buf = append(f.buf, b[:]...)
	}
}

// AddStrings appends each string with a separator.
func (f *Fingerprint) AddStrings(values ...string) {
	for _, v := range values {
		f.buf = append(f.buf, v...)
		f.buf = append(f.buf, 0x1f)
	}
}

// AddMap appends a map in key order.
func (f *Fingerprint) AddMap(m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(m[k])
		sb.WriteByte(';')
	}
	f.buf = append(f.buf, sb.String()...)
}

// Sum returns the digest of everything added so far.
func (f *Fingerprint) Sum() Hash {
	return NewHash(f.buf)
}
