package keystore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStaticAndLookup(t *testing.T) {
	data := "FA505078126ACB3E " + strings.Repeat("ab", 16) + "\n# comment\n\n"
	s, err := ParseStatic([]byte(data))
	require.NoError(t, err)

	key, ok := s.Lookup("fa505078126acb3e")
	require.True(t, ok)
	require.EqualValues(t, 0xab, key[0])

	_, ok = s.Lookup("missing")
	require.False(t, ok)
}

func TestParseStaticRejectsMalformedLine(t *testing.T) {
	_, err := ParseStatic([]byte("onlyonefield"))
	require.Error(t, err)
}

func TestParseStaticRejectsWrongKeyLength(t *testing.T) {
	_, err := ParseStatic([]byte("name ab"))
	require.Error(t, err)
}
