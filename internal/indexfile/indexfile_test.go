package indexfile

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cascfs/casc/internal/bytesutil"
	"github.com/cascfs/casc/internal/catalog"
	"github.com/cascfs/casc/internal/digest"
)

func encodeRecord(prefix [digest.EKeyPrefixSize]byte, archiveIdx int, offset, encodedSize int64, offsetBits uint) []byte {
	out := make([]byte, recordSize)
	copy(out, prefix[:])
	packed := bytesutil.PackArchiveAndOffset(archiveIdx, offset, offsetBits)
	copy(out[digest.EKeyPrefixSize:], packed[:])
	binary.LittleEndian.PutUint32(out[digest.EKeyPrefixSize+5:], uint32(encodedSize))
	return out
}

func buildFixture(t *testing.T, records [][]byte, offsetBits byte) []byte {
	t.Helper()
	var data []byte
	data = append(data, Magic[:]...)
	data = append(data, defaultVersion, offsetBits)
	for _, r := range records {
		data = append(data, r...)
	}
	return data
}

func TestParseAndLookup(t *testing.T) {
	var prefix [digest.EKeyPrefixSize]byte
	copy(prefix[:], []byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	rec := encodeRecord(prefix, 3, 4096, 128, 30)
	data := buildFixture(t, [][]byte{rec}, 30)

	records, err := Parse(data, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 3, records[0].ArchiveIdx)
	require.Equal(t, int64(4096), records[0].Offset)
	require.Equal(t, int64(128), records[0].EncodedSize)

	table := NewTable(records)
	got, ok := table.Lookup(prefix)
	require.True(t, ok)
	require.Equal(t, records[0], got)
}

func TestTableMergesAndSorts(t *testing.T) {
	var pA, pB [digest.EKeyPrefixSize]byte
	copy(pA[:], []byte{9, 9, 9, 9, 9, 9, 9, 9, 9})
	copy(pB[:], []byte{1, 1, 1, 1, 1, 1, 1, 1, 1})

	recsA, err := Parse(buildFixture(t, [][]byte{encodeRecord(pA, 0, 0, 10, 30)}, 30), 0)
	require.NoError(t, err)
	recsB, err := Parse(buildFixture(t, [][]byte{encodeRecord(pB, 1, 0, 20, 30)}, 30), 0)
	require.NoError(t, err)

	table := NewTable(recsA, recsB)
	require.Equal(t, 2, table.Len())

	_, okA := table.Lookup(pA)
	_, okB := table.Lookup(pB)
	require.True(t, okA)
	require.True(t, okB)
}

func TestApplyResolvesStorageOffset(t *testing.T) {
	var prefix [digest.EKeyPrefixSize]byte
	copy(prefix[:], []byte{2, 2, 2, 2, 2, 2, 2, 2, 2})
	ek := digest.EKeyFromBytes(prefix[:])

	store := catalog.New()
	require.NoError(t, store.Reserve(4))
	_, err := store.InsertOrMerge(catalog.Seed{EKey: ek, Flags: catalog.HasEKey | catalog.InDownload})
	require.NoError(t, err)

	records, err := Parse(buildFixture(t, [][]byte{encodeRecord(prefix, 5, 512, 64, 30)}, 30), 0)
	require.NoError(t, err)
	table := NewTable(records)
	table.Apply(store)

	e, ok := store.FindByEKey(ek)
	require.True(t, ok)
	require.Equal(t, 5, e.StorageOffset.ArchiveIndex)
	require.Equal(t, int64(512), e.StorageOffset.Offset)
}

func TestParseRejectsBadMagic(t *testing.T) {
	_, err := Parse([]byte("XXshort"), 0)
	require.ErrorIs(t, err, ErrBadFormat)
}
