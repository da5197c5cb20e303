package wellknown

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cascfs/casc/internal/catalog"
	"github.com/cascfs/casc/internal/digest"
	"github.com/cascfs/casc/internal/rootdispatch/legacyroot"
)

func TestInsertResolvesExistingEntries(t *testing.T) {
	store := catalog.New()
	require.NoError(t, store.Reserve(8))

	ck := digest.CKey{1, 1}
	e, err := store.InsertOrMerge(catalog.Seed{CKey: ck, ContentSize: 10, Flags: catalog.HasCKey | catalog.InEncoding})
	require.NoError(t, err)

	handler := legacyroot.New()
	set := Set{Encoding: Triple{CKey: ck}}
	require.NoError(t, Insert(store, handler, set, false))

	got, ok := handler.Lookup(NameEncoding)
	require.True(t, ok)
	require.Same(t, e, got)
	require.Equal(t, 1, e.RefCount)
}

func TestInsertSkipsUnknownTriple(t *testing.T) {
	store := catalog.New()
	require.NoError(t, store.Reserve(8))
	handler := legacyroot.New()

	require.NoError(t, Insert(store, handler, Set{}, false))
	_, ok := handler.Lookup(NameRoot)
	require.False(t, ok)
}

func TestInsertSynthesizesPatchWhenOnline(t *testing.T) {
	store := catalog.New()
	require.NoError(t, store.Reserve(8))
	handler := legacyroot.New()

	ek := digest.EKey{9, 9, 9}
	set := Set{Patch: Triple{EKey: ek}}
	require.NoError(t, Insert(store, handler, set, true))

	got, ok := handler.Lookup(NamePatch)
	require.True(t, ok)
	require.True(t, got.Flags&catalog.FilePatch != 0)
}

func TestInsertDoesNotSynthesizePatchWhenOffline(t *testing.T) {
	store := catalog.New()
	require.NoError(t, store.Reserve(8))
	handler := legacyroot.New()

	ek := digest.EKey{9, 9, 9}
	set := Set{Patch: Triple{EKey: ek}}
	require.NoError(t, Insert(store, handler, set, false))

	_, ok := handler.Lookup(NamePatch)
	require.False(t, ok)
}
