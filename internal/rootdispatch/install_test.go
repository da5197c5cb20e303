package rootdispatch

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cascfs/casc/internal/digest"
)

func buildInstallFixture(t *testing.T, entries []InstallEntry, tagName string, tagBitmap []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(InstallMagic[:])
	buf.WriteByte(1) // version
	buf.WriteByte(digest.Size)
	var tagCount [2]byte
	binary.BigEndian.PutUint16(tagCount[:], 1)
	buf.Write(tagCount[:])
	var entryCount [4]byte
	binary.BigEndian.PutUint32(entryCount[:], uint32(len(entries)))
	buf.Write(entryCount[:])

	buf.WriteString(tagName)
	buf.WriteByte(0)
	buf.Write([]byte{0, 0}) // tag type, unused
	var bitWidth [4]byte
	binary.BigEndian.PutUint32(bitWidth[:], uint32(len(entries)))
	buf.Write(bitWidth[:])
	buf.Write(tagBitmap)

	for _, e := range entries {
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(e.CKey[:])
		var size [4]byte
		binary.BigEndian.PutUint32(size[:], uint32(e.Size))
		buf.Write(size[:])
	}
	return buf.Bytes()
}

func TestParseInstall(t *testing.T) {
	want := []InstallEntry{
		{Name: "enUS/Wow.exe", CKey: digest.CKey{1, 2, 3}, Size: 1024},
		{Name: "Data/common.MPQ", CKey: digest.CKey{4, 5, 6}, Size: 2048},
	}
	data := buildInstallFixture(t, want, "Windows", []byte{0xC0})

	got, err := ParseInstall(data)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, want[0].Name, got[0].Name)
	require.Equal(t, want[0].CKey, got[0].CKey)
	require.Equal(t, want[0].Size, got[0].Size)
	require.Equal(t, want[1].Name, got[1].Name)
	require.Equal(t, want[1].CKey, got[1].CKey)
	require.Equal(t, want[1].Size, got[1].Size)
}

func TestParseInstallRejectsBadMagic(t *testing.T) {
	_, err := ParseInstall([]byte("XXshort"))
	require.ErrorIs(t, err, ErrBadFormat)
}

func TestParseInstallRejectsUnsupportedEKeyLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(InstallMagic[:])
	buf.WriteByte(1)
	buf.WriteByte(9) // unsupported truncated key length
	buf.Write([]byte{0, 0, 0, 0, 0, 0})
	_, err := ParseInstall(buf.Bytes())
	require.ErrorIs(t, err, ErrBadFormat)
}
