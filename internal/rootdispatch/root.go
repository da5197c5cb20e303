// Package rootdispatch defines the root-handler contract every CASC root
// format implements, and dispatches raw root bytes to the handler that
// recognizes them.
//
// The concrete binary root decoders (MNDX, TVFS, Diablo3, WoW, Overwatch,
// Starcraft1) are external collaborators outside this engine's scope; this
// package supplies the contract plus two simplified stand-ins
// (legacyroot, tvfsroot) sufficient to exercise the orchestrator's ROOT
// stage and its reparse transition end-to-end.
package rootdispatch

import (
	"errors"

	"github.com/cascfs/casc/internal/catalog"
)

// ErrReparseRoot is returned by TryCreate when the root bytes identify a
// different root document that must be loaded instead (TVFS delegating
// back to a legacy root). The orchestrator retries exactly once.
var ErrReparseRoot = errors.New("rootdispatch: reparse to legacy root required")

// ErrBadFormat is returned by TryCreate when the bytes do not match the
// handler's expected shape.
var ErrBadFormat = errors.New("rootdispatch: unrecognized root format")

// Handler is the capability set every root format implements: insertion of
// resolved names, merging a prior handler's names after a reparse, and a
// features bitset describing what that format makes available.
type Handler interface {
	// Insert makes name resolvable to entry through this handler.
	Insert(name string, entry *catalog.Entry)
	// Lookup resolves a logical name to its catalog entry.
	Lookup(name string) (*catalog.Entry, bool)
	// CopyFrom merges every name from other into this handler, used after a
	// reparse to preserve names resolved during the discarded first pass.
	CopyFrom(other Handler)
	// Features reports the capability bitset this root format offers.
	Features() FeatureSet
	// Names returns every logical name currently resolvable.
	Names() []string
}

// FeatureSet mirrors the storage-level CascFeatures bitset but scoped to
// what a particular root format contributes.
type FeatureSet uint8

const (
	FeatureNamedLookup FeatureSet = 1 << iota
	FeatureVFS
)

// TryCreateFunc parses root bytes into a Handler, or returns ErrBadFormat.
// When it returns ErrReparseRoot, the []byte result is the 16-byte CKey of
// the legacy root document the caller must fetch and retry with; it is nil
// for any other outcome. localeMask is forwarded unused by either stand-in
// implementation (locale negotiation belongs to the real root decoders).
type TryCreateFunc func(data []byte, localeMask uint32) (Handler, []byte, error)

// registration pairs a magic-byte matcher with the handler constructor that
// claims it.
type registration struct {
	name      string
	matches   func(data []byte) bool
	tryCreate TryCreateFunc
}

// Registry is an ordered list of root formats to try against incoming root
// bytes. Construction is explicit (rather than package-level init-time
// registration) so dispatch order — magic-specific formats before the
// magic-less fallback — is controlled by the caller that wires the engine,
// not by unrelated packages' import order.
type Registry struct {
	regs []registration
}

// NewRegistry returns an empty dispatch registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a root format to the registry. name is used only for
// diagnostics. A catch-all matcher (one that always returns true, for
// formats lacking a magic) must be registered last per the fallback-chain
// design note.
func (r *Registry) Register(name string, matches func([]byte) bool, tryCreate TryCreateFunc) {
	r.regs = append(r.regs, registration{name: name, matches: matches, tryCreate: tryCreate})
}

// Dispatch selects the first registered format whose matcher accepts data
// and invokes its TryCreate.
func (r *Registry) Dispatch(data []byte, localeMask uint32) (Handler, []byte, error) {
	for _, reg := range r.regs {
		if reg.matches(data) {
			return reg.tryCreate(data, localeMask)
		}
	}
	return nil, nil, ErrBadFormat
}
