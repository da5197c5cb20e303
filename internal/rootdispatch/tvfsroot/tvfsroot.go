// Package tvfsroot implements a simplified stand-in for the TVFS
// (tree-structured virtual file system) root format, sufficient to
// exercise the orchestrator's reparse transition: a TVFS root may
// delegate back to a legacy root document instead of carrying names
// itself.
//
// The real TVFS path/VFS table (per the GLOSSARY and the design notes'
// "polymorphic root handlers" discussion) is out of this engine's scope;
// this package decodes only the header fields needed to either detect a
// delegation or to recognize a minimal embedded name table.
package tvfsroot

import (
	"bytes"
	"encoding/binary"

	"github.com/cascfs/casc/internal/digest"
	"github.com/cascfs/casc/internal/rootdispatch"
	"github.com/cascfs/casc/internal/rootdispatch/legacyroot"
)

// Magic identifies a TVFS root document.
var Magic = [4]byte{'T', 'V', 'F', 'S'}

const (
	flagExternal = 1 << 0
	// flagEmbeddedNames marks an external (delegating) document that also
	// carries its own transient name table ahead of the legacy CKey, so the
	// orchestrator's reparse retry has something to union in via CopyFrom
	// (spec.md's scenario 6: "the final root handler contains the union of
	// names from the transient TVFS pass and the legacy pass").
	flagEmbeddedNames = 1 << 1
)

// Matches reports whether data begins with the TVFS magic.
func Matches(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], Magic[:])
}

// TryCreate parses:
//
//	magic[4]="TVFS", version[1], flags[1]
//
// When flags&flagExternal is set, the document delegates to a legacy root:
// if flags&flagEmbeddedNames is also set, a length-prefixed legacyroot-format
// name table precedes the legacy CKey and is parsed into a first-pass
// handler; otherwise the first-pass handler is nil. Either way TryCreate
// returns rootdispatch.ErrReparseRoot with the legacy CKey.
//
// Without flagExternal, the remaining bytes are a legacyroot-format name
// table and TryCreate delegates outright to legacyroot.TryCreate, so
// TVFS-without-delegation behaves like any other named root.
func TryCreate(data []byte, localeMask uint32) (rootdispatch.Handler, []byte, error) {
	if !Matches(data) {
		return nil, nil, rootdispatch.ErrBadFormat
	}
	if len(data) < 6 {
		return nil, nil, rootdispatch.ErrBadFormat
	}
	flags := data[5]
	rest := data[6:]
	if flags&flagExternal != 0 {
		var firstPass rootdispatch.Handler
		if flags&flagEmbeddedNames != 0 {
			if len(rest) < 4 {
				return nil, nil, rootdispatch.ErrBadFormat
			}
			tableLen := binary.BigEndian.Uint32(rest[:4])
			rest = rest[4:]
			if uint64(len(rest)) < uint64(tableLen) {
				return nil, nil, rootdispatch.ErrBadFormat
			}
			table := rest[:tableLen]
			rest = rest[tableLen:]
			h, _, err := legacyroot.TryCreate(table, localeMask)
			if err != nil {
				return nil, nil, err
			}
			firstPass = h
		}
		if len(rest) < digest.Size {
			return nil, nil, rootdispatch.ErrBadFormat
		}
		legacyCKey := make([]byte, digest.Size)
		copy(legacyCKey, rest[:digest.Size])
		return firstPass, legacyCKey, rootdispatch.ErrReparseRoot
	}
	return legacyroot.TryCreate(rest, localeMask)
}

// header encodes the fields TryCreate expects; the fixture builders below
// use it.
type header struct {
	Version uint8
	Flags   uint8
}

func (h header) bytes() []byte {
	return []byte{h.Version, h.Flags}
}

// BuildExternalFixture returns TVFS bytes that delegate to legacyCKey with
// no first-pass name table.
func BuildExternalFixture(legacyCKey digest.CKey) []byte {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.Write(header{Version: 1, Flags: flagExternal}.bytes())
	buf.Write(legacyCKey[:])
	return buf.Bytes()
}

// BuildExternalWithNamesFixture returns TVFS bytes that delegate to
// legacyCKey but first carry legacyTable (a full legacyroot-format
// document, magic included) as a first-pass name table.
func BuildExternalWithNamesFixture(legacyCKey digest.CKey, legacyTable []byte) []byte {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.Write(header{Version: 1, Flags: flagExternal | flagEmbeddedNames}.bytes())
	var tableLen [4]byte
	binary.BigEndian.PutUint32(tableLen[:], uint32(len(legacyTable)))
	buf.Write(tableLen[:])
	buf.Write(legacyTable)
	buf.Write(legacyCKey[:])
	return buf.Bytes()
}

// BuildNamedFixture returns TVFS bytes carrying an embedded legacyroot name
// table directly (no delegation).
func BuildNamedFixture(entryCount uint32, legacyTableBody []byte) []byte {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.Write(header{Version: 1, Flags: 0}.bytes())
	buf.Write(legacyroot.Magic[:])
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], entryCount)
	buf.Write(count[:])
	buf.Write(legacyTableBody)
	return buf.Bytes()
}
