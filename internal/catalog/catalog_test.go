package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cascfs/casc/internal/digest"
)

func mustStore(t *testing.T, capacity int) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.Reserve(capacity))
	return s
}

func TestInsertRejectsEmptySeed(t *testing.T) {
	s := mustStore(t, 4)
	_, err := s.InsertOrMerge(Seed{})
	require.ErrorIs(t, err, ErrRejected)
}

func TestInsertOrMergeCreatesStablePointer(t *testing.T) {
	s := mustStore(t, 4)
	ckey := digest.CKey{1}
	e, err := s.InsertOrMerge(Seed{CKey: ckey, ContentSize: 100, Flags: HasCKey | InEncoding})
	require.NoError(t, err)
	require.Equal(t, int64(100), e.ContentSize)

	// Force a few more inserts; the first entry's pointer must stay valid.
	for i := 2; i < 4; i++ {
		var c digest.CKey
		c[0] = byte(i)
		_, err := s.InsertOrMerge(Seed{CKey: c, Flags: HasCKey})
		require.NoError(t, err)
	}

	found, ok := s.FindByCKey(ckey)
	require.True(t, ok)
	require.Same(t, e, found)
}

func TestInsertOrMergeOverCapacity(t *testing.T) {
	s := mustStore(t, 1)
	_, err := s.InsertOrMerge(Seed{CKey: digest.CKey{1}, Flags: HasCKey})
	require.NoError(t, err)
	_, err = s.InsertOrMerge(Seed{CKey: digest.CKey{2}, Flags: HasCKey})
	require.ErrorIs(t, err, ErrNotEnoughMemory)
}

func TestMergeWidensWithoutOverwriting(t *testing.T) {
	s := mustStore(t, 4)
	ckey := digest.CKey{9}
	ekey := digest.EKey{8, 1, 2, 3, 4, 5, 6, 7, 8}
	e, err := s.InsertOrMerge(Seed{CKey: ckey, ContentSize: 100, Flags: HasCKey | InEncoding})
	require.NoError(t, err)

	// Second ingest (simulating DOWNLOAD) supplies EKey/EncodedSize/Priority
	// but a different (bogus) content size, which must not overwrite the
	// known value.
	e2, err := s.InsertOrMerge(Seed{CKey: ckey, EKey: ekey, ContentSize: 9999, EncodedSize: 77, Priority: 3, Flags: HasEKey | InDownload})
	require.NoError(t, err)
	require.Same(t, e, e2)
	require.Equal(t, int64(100), e.ContentSize, "known content size must not be overwritten")
	require.Equal(t, int64(77), e.EncodedSize)
	require.EqualValues(t, 3, e.Priority)
	require.True(t, e.Flags&InEncoding != 0 && e.Flags&InDownload != 0)

	byEKey, ok := s.FindByEKey(ekey)
	require.True(t, ok)
	require.Same(t, e, byEKey)
}

func TestPartialEKeyReplacedByFull(t *testing.T) {
	s := mustStore(t, 4)
	prefix := digest.EKeyFromBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	e, err := s.InsertOrMerge(Seed{EKey: prefix, EKeyPartial: true, Flags: HasEKey | HasEKeyPartial | InDownload})
	require.NoError(t, err)
	require.True(t, e.Flags&HasEKeyPartial != 0)

	full := digest.EKeyFromBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x11})
	e2, err := s.InsertOrMerge(Seed{EKey: full, Flags: HasEKey | InDownload})
	require.NoError(t, err)
	require.Same(t, e, e2)
	require.False(t, e.Flags&HasEKeyPartial != 0)
	require.Equal(t, full, e.EKey)
}

func TestEKeyPrefixCollisionMergesNotDuplicates(t *testing.T) {
	s := mustStore(t, 4)
	a := digest.EKeyFromBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 0xAA})
	b := digest.EKeyFromBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 0xBB})
	e1, err := s.InsertOrMerge(Seed{EKey: a, EncodedSize: 50, Flags: HasEKey | InDownload})
	require.NoError(t, err)
	e2, err := s.InsertOrMerge(Seed{EKey: b, EncodedSize: 60, Flags: HasEKey | InDownload})
	require.NoError(t, err)
	require.Same(t, e1, e2)
	require.Equal(t, 1, s.Len())
}

func TestEstimateCapacity(t *testing.T) {
	require.Equal(t, defaultCapacityEstimate+capacitySlack, EstimateCapacity(0, 0))
	require.Equal(t, 38+capacitySlack, EstimateCapacity(38*38, 0))
	require.Equal(t, 22*5+capacitySlack, EstimateCapacity(0, 22*5*22))
}

func TestResolveStorageOffset(t *testing.T) {
	s := mustStore(t, 4)
	ekey := digest.EKeyFromBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	_, err := s.InsertOrMerge(Seed{EKey: ekey, Flags: HasEKey | InDownload})
	require.NoError(t, err)

	ok := s.ResolveStorageOffset(ekey, StorageOffset{ArchiveIndex: 3, Offset: 4096}, 128, 1)
	require.True(t, ok)

	e, _ := s.FindByEKey(ekey)
	require.Equal(t, 3, e.StorageOffset.ArchiveIndex)
	require.Equal(t, int64(4096), e.StorageOffset.Offset)
	require.Equal(t, int64(128), e.EncodedSize)
}

func TestAddTagBitAndRefCount(t *testing.T) {
	s := mustStore(t, 4)
	e, err := s.InsertOrMerge(Seed{CKey: digest.CKey{5}, Flags: HasCKey})
	require.NoError(t, err)

	s.AddTagBit(e, 0)
	s.AddTagBit(e, 1)
	require.EqualValues(t, 0b11, e.TagBitmask)

	s.IncRef(e)
	s.IncRef(e)
	require.Equal(t, 2, e.RefCount)
}
