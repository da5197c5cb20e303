package local

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadBlockRoundTrip(t *testing.T) {
	dir := t.TempDir()
	content := append([]byte{0xDE, 0xAD, 0xBE, 0xEF}, make([]byte, 100)...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.000"), content, 0o600))

	r := New(dir)
	defer r.Close()

	got, err := r.ReadLocal(0, 0, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, got)
}

func TestReadBlockMissingArchive(t *testing.T) {
	r := New(t.TempDir())
	defer r.Close()

	_, err := r.ReadLocal(7, 0, 4)
	require.ErrorIs(t, err, ErrArchiveNotFound)
}

func TestReadBlockReusesOpenHandle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.000"), make([]byte, 16), 0o600))

	r := New(dir)
	defer r.Close()

	_, err := r.ReadLocal(0, 0, 4)
	require.NoError(t, err)
	require.Len(t, r.opened, 1)

	_, err = r.ReadLocal(0, 8, 4)
	require.NoError(t, err)
	require.Len(t, r.opened, 1)
}
