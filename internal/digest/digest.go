// Package digest defines the two fixed-size content-addressing keys used
// throughout the CASC storage formats: the content key (CKey) and the
// encoded key (EKey).
package digest

import (
	"bytes"
	"encoding/hex"
)

// Size is the full byte width of both CKey and EKey as stored on disk.
const Size = 16

// EKeyPrefixSize is the number of leading EKey bytes that are authoritative
// for lookup and indexing; the CASC on-disk formats routinely truncate EKeys
// to this width.
const EKeyPrefixSize = 9

// CKey is a content digest: a hash of a file's decoded bytes.
type CKey [Size]byte

// EKey is an encoded digest: a hash of a file's encoded (header+frames) bytes.
// Only the first EKeyPrefixSize bytes are compared or indexed.
type EKey [Size]byte

// IsZero reports whether k is the all-zero digest, CASC's sentinel for
// "not present".
func (k CKey) IsZero() bool { return k == CKey{} }

// IsZero reports whether k is the all-zero digest.
func (k EKey) IsZero() bool { return k == EKey{} }

// Prefix returns the authoritative 9-byte lookup prefix of the EKey.
func (k EKey) Prefix() [EKeyPrefixSize]byte {
	var p [EKeyPrefixSize]byte
	copy(p[:], k[:EKeyPrefixSize])
	return p
}

// Equal reports whether two CKeys are byte-identical.
func (k CKey) Equal(other CKey) bool { return k == other }

// EqualPrefix reports whether two EKeys share the same 9-byte lookup prefix.
// This is the comparison CASC formats actually perform; the trailing 7
// bytes are frequently absent (HAS_EKEY_PARTIAL) or simply unchecked.
func (k EKey) EqualPrefix(other EKey) bool {
	return bytes.Equal(k[:EKeyPrefixSize], other[:EKeyPrefixSize])
}

func (k CKey) String() string { return hex.EncodeToString(k[:]) }
func (k EKey) String() string { return hex.EncodeToString(k[:]) }

// CKeyFromBytes copies b (which must be exactly Size bytes) into a CKey.
func CKeyFromBytes(b []byte) CKey {
	var k CKey
	copy(k[:], b)
	return k
}

// EKeyFromBytes copies b into an EKey. If b is shorter than Size (the
// "partial" EKey case produced by some DOWNLOAD layouts), the remaining
// bytes stay zero.
func EKeyFromBytes(b []byte) EKey {
	var k EKey
	copy(k[:], b)
	return k
}

// ParseHexCKey decodes a hex-encoded digest string into a CKey.
func ParseHexCKey(s string) (CKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return CKey{}, err
	}
	return CKeyFromBytes(b), nil
}

// ParseHexEKey decodes a hex-encoded digest string into an EKey.
func ParseHexEKey(s string) (EKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return EKey{}, err
	}
	return EKeyFromBytes(b), nil
}
