// Package wellknown inserts the well-known manifest file names (ENCODING,
// DOWNLOAD, INSTALL, PATCH, ROOT, SIZE) into a root handler, so they are
// reachable through the ordinary name-lookup path rather than only by the
// orchestrator's own direct digest references.
package wellknown

import (
	"github.com/cascfs/casc/internal/catalog"
	"github.com/cascfs/casc/internal/digest"
	"github.com/cascfs/casc/internal/rootdispatch"
)

// Names are the six well-known logical file names this engine resolves.
const (
	NameEncoding = "ENCODING"
	NameDownload = "DOWNLOAD"
	NameInstall  = "INSTALL"
	NamePatch    = "PATCH"
	NameRoot     = "ROOT"
	NameSize     = "SIZE"
)

// Triple is the minimal shape this package needs from a CDN-build record:
// enough to find or synthesize the corresponding catalog entry.
type Triple struct {
	CKey digest.CKey
	EKey digest.EKey
}

// Set bundles six of the seven triples a CDN-build document yields; VFSRoot
// has no well-known logical name of its own and is not part of it.
type Set struct {
	Encoding Triple
	Download Triple
	Install  Triple
	Root     Triple
	Patch    Triple
	Size     Triple
}

// Insert resolves each well-known triple to a catalog entry (by CKey, then
// by EKey) and inserts name -> entry into handler, incrementing the
// entry's reference count. A triple with neither digest known is skipped.
//
// For PATCH specifically, if the entry is not present in any index and
// online is true, a new catalog entry is synthesized from its EKey and
// marked FilePatch — the "PATCH-online synthesis" the distillation left
// unspecified (CascOpenStorage.cpp has no local PATCH archive entry for a
// build that only ships it over the CDN).
func Insert(store *catalog.Store, handler rootdispatch.Handler, set Set, online bool) error {
	entries := map[string]Triple{
		NameEncoding: set.Encoding,
		NameDownload: set.Download,
		NameInstall:  set.Install,
		NameRoot:     set.Root,
		NameSize:     set.Size,
	}
	for name, t := range entries {
		if err := insertOne(store, handler, name, t, false); err != nil {
			return err
		}
	}
	return insertOne(store, handler, NamePatch, set.Patch, online)
}

func insertOne(store *catalog.Store, handler rootdispatch.Handler, name string, t Triple, synthesizeIfMissing bool) error {
	if t.CKey.IsZero() && t.EKey.IsZero() {
		return nil
	}
	var entry *catalog.Entry
	var ok bool
	if !t.CKey.IsZero() {
		entry, ok = store.FindByCKey(t.CKey)
	}
	if !ok && !t.EKey.IsZero() {
		entry, ok = store.FindByEKey(t.EKey)
	}
	if !ok {
		if !synthesizeIfMissing {
			return nil
		}
		flags := catalog.HasEKey
		if !t.CKey.IsZero() {
			flags |= catalog.HasCKey
		}
		if name == NamePatch {
			flags |= catalog.FilePatch
		}
		var err error
		entry, err = store.InsertOrMerge(catalog.Seed{CKey: t.CKey, EKey: t.EKey, Flags: flags})
		if err != nil {
			return err
		}
	}
	store.IncRef(entry)
	handler.Insert(name, entry)
	return nil
}
