package cdnconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cascfs/casc/internal/digest"
)

func TestParseConfigKeyLists(t *testing.T) {
	a := strings.Repeat("aa", 16)
	b := strings.Repeat("bb", 16)
	data := "archive-group = " + a + "\narchives = " + a + " " + b + "\n"

	cfg := ParseConfig([]byte(data))
	require.Len(t, cfg.ArchiveGroup, 1)
	require.Len(t, cfg.Archives, 2)
}

func TestParseBuildTriples(t *testing.T) {
	ck := strings.Repeat("11", 16)
	ek := strings.Repeat("22", 16)
	data := "encoding = " + ck + " " + ek + " 100\ndownload = " + ck + "\n"

	build := ParseBuild([]byte(data))

	wantCK, _ := digest.ParseHexCKey(ck)
	wantEK, _ := digest.ParseHexEKey(ek)
	require.Equal(t, wantCK, build.Encoding.CKey)
	require.Equal(t, wantEK, build.Encoding.EKey)
	require.Equal(t, int64(100), build.Encoding.ContentSize)

	require.Equal(t, wantCK, build.Download.CKey)
	require.True(t, build.Download.EKey.IsZero())
	require.Equal(t, int64(-1), build.Download.ContentSize)
}

func TestParseBuildMissingTripleIsUnknown(t *testing.T) {
	build := ParseBuild([]byte(""))
	require.True(t, build.Root.CKey.IsZero())
	require.Equal(t, int64(-1), build.Root.ContentSize)
}
