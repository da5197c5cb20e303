// Package legacyroot implements a flat name-to-entry root handler: the
// fallback target of a TVFS reparse, and the target the INSTALL manifest
// populates when the real ROOT document cannot be decoded.
//
// CascCommon.h describes TRootHandler as a common base with several
// CASC_GAME_*-specific subclasses (WoW, Diablo3, Overwatch, ...); those
// concrete binary root layouts are out of this engine's scope. This
// handler instead recognizes a deliberately simple stand-in format — a
// magic, an entry count, and NUL-terminated name/CKey pairs — sufficient
// to drive the orchestrator's ROOT stage without reimplementing Blizzard's
// real per-game root codecs.
package legacyroot

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/cascfs/casc/internal/catalog"
	"github.com/cascfs/casc/internal/digest"
	"github.com/cascfs/casc/internal/rootdispatch"
)

// Magic identifies the simplified legacy root format: "ROOT".
var Magic = [4]byte{'R', 'O', 'O', 'T'}

// Handler is a flat map of logical name to catalog entry.
type Handler struct {
	mu      sync.RWMutex
	byName  map[string]*catalog.Entry
	pending []nameCKey
}

// New returns an empty Handler.
func New() *Handler {
	return &Handler{byName: make(map[string]*catalog.Entry)}
}

// Matches reports whether data begins with the legacy root magic.
func Matches(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], Magic[:])
}

// TryCreate parses the simplified legacy root format:
//
//	magic[4]="ROOT", entryCount[4 BE], entries: {name(NUL-terminated), ckey[16]}
//
// Resolution against the catalog (attaching each parsed name to the entry
// already known by that CKey) is the caller's responsibility, since
// TryCreate has no catalog access; see Resolve.
func TryCreate(data []byte, _ uint32) (rootdispatch.Handler, []byte, error) {
	if !Matches(data) {
		return nil, nil, rootdispatch.ErrBadFormat
	}
	if len(data) < 8 {
		return nil, nil, rootdispatch.ErrBadFormat
	}
	h := New()
	count := binary.BigEndian.Uint32(data[4:8])
	names := make([]nameCKey, 0, count)
	off := 8
	for i := uint32(0); i < count; i++ {
		nul := bytes.IndexByte(data[off:], 0)
		if nul < 0 {
			return nil, nil, rootdispatch.ErrBadFormat
		}
		name := string(data[off : off+nul])
		off += nul + 1
		if off+digest.Size > len(data) {
			return nil, nil, rootdispatch.ErrBadFormat
		}
		ck := digest.CKeyFromBytes(data[off : off+digest.Size])
		off += digest.Size
		names = append(names, nameCKey{name: name, ckey: ck})
	}
	h.pending = names
	return h, nil, nil
}

// nameCKey is a name awaiting resolution against the catalog.
type nameCKey struct {
	name string
	ckey digest.CKey
}

// Resolve attaches every name parsed by TryCreate to its catalog entry,
// creating the entry via store.InsertOrMerge if ENCODING had not already
// produced one for that CKey (such an entry has only HAS_CKEY set).
func (h *Handler) Resolve(store *catalog.Store) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, nc := range h.pending {
		entry, ok := store.FindByCKey(nc.ckey)
		if !ok {
			var err error
			entry, err = store.InsertOrMerge(catalog.Seed{CKey: nc.ckey, Flags: catalog.HasCKey})
			if err != nil {
				return err
			}
		}
		store.IncRef(entry)
		h.byName[nc.name] = entry
	}
	h.pending = nil
	return nil
}

// Insert implements rootdispatch.Handler.
func (h *Handler) Insert(name string, entry *catalog.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byName[name] = entry
}

// Lookup implements rootdispatch.Handler.
func (h *Handler) Lookup(name string) (*catalog.Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.byName[name]
	return e, ok
}

// CopyFrom implements rootdispatch.Handler.
func (h *Handler) CopyFrom(other rootdispatch.Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, name := range other.Names() {
		if e, ok := other.Lookup(name); ok {
			h.byName[name] = e
		}
	}
}

// Features implements rootdispatch.Handler.
func (h *Handler) Features() rootdispatch.FeatureSet {
	return rootdispatch.FeatureNamedLookup
}

// Names implements rootdispatch.Handler.
func (h *Handler) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.byName))
	for name := range h.byName {
		out = append(out, name)
	}
	return out
}

// TryCreateOrEmpty is the fallback-chain catch-all: it parses the legacy
// format when the magic matches, and otherwise returns an empty handler
// rather than ErrBadFormat, so that root bytes with no recognizable magic
// still produce a (nameless) handler per the dispatch design note.
func TryCreateOrEmpty(data []byte, localeMask uint32) (rootdispatch.Handler, []byte, error) {
	if Matches(data) {
		return TryCreate(data, localeMask)
	}
	return New(), nil, nil
}
