// Package keystore defines the encryption-key store contract the
// orchestrator consults after well-known insertion, plus a minimal
// concrete map-backed implementation.
//
// Key *provisioning* (where keys come from) is explicitly out of this
// engine's scope; this package only supplies the lookup interface and a
// static file-backed implementation so OpenStorage has a usable default.
package keystore

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeySize is the width of a CASC encryption key, matching
// CascCommon.h's key-name/key-value pairing.
const KeySize = 16

// Store resolves a key name (CascCommon.h's lookup-by-name convention,
// distinct from the CKey/EKey digests used elsewhere) to its 16-byte value.
type Store interface {
	Lookup(keyName string) ([KeySize]byte, bool)
}

// Static is a map-backed Store loaded once from a two-column hex file.
type Static struct {
	keys map[string][KeySize]byte
}

// NewStatic returns an empty Static store.
func NewStatic() *Static {
	return &Static{keys: make(map[string][KeySize]byte)}
}

// Put registers a key under name.
func (s *Static) Put(name string, key [KeySize]byte) {
	s.keys[strings.ToLower(name)] = key
}

// Lookup implements Store.
func (s *Static) Lookup(keyName string) ([KeySize]byte, bool) {
	k, ok := s.keys[strings.ToLower(keyName)]
	return k, ok
}

// ParseStatic loads a "<root>/data/config/blizzard.key"-style file: one
// "<keyname-hex> <keyvalue-hex>" pair per line.
func ParseStatic(data []byte) (*Static, error) {
	s := NewStatic()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("keystore: line %d: expected \"name value\" pair", lineNo)
		}
		name := strings.ToLower(fields[0])
		valueBytes, err := hex.DecodeString(fields[1])
		if err != nil {
			return nil, fmt.Errorf("keystore: line %d: %w", lineNo, err)
		}
		if len(valueBytes) != KeySize {
			return nil, fmt.Errorf("keystore: line %d: key value must be %d bytes, got %d", lineNo, KeySize, len(valueBytes))
		}
		var key [KeySize]byte
		copy(key[:], valueBytes)
		s.keys[name] = key
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("keystore: scan: %w", err)
	}
	return s, nil
}
