package descriptor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBuildInfoSelectsRegion(t *testing.T) {
	cdnConfig := strings.Repeat("ab", 16)
	cdnBuild := strings.Repeat("cd", 16)
	data := strings.Join([]string{
		"Branch!STRING:0|Region!STRING:0|CDNConfig!HEX:16|CDNBuild!HEX:16|BuildId!DEC:4",
		"wow|eu|" + cdnConfig + "|" + cdnBuild + "|12345",
		"wow|us|" + strings.Repeat("11", 16) + "|" + strings.Repeat("22", 16) + "|54321",
	}, "\n")

	d, err := ParseBuildInfo([]byte(data), "us", "")
	require.NoError(t, err)
	require.EqualValues(t, 54321, d.BuildNumber)
}

func TestParseBuildInfoMissingRegion(t *testing.T) {
	data := "Region!STRING:0|CDNConfig!HEX:16\neu|" + strings.Repeat("ab", 16)
	_, err := ParseBuildInfo([]byte(data), "kr", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseBuildInfoSelectsBuildKey(t *testing.T) {
	cdnConfig := strings.Repeat("ab", 16)
	cdnBuild := strings.Repeat("cd", 16)
	data := strings.Join([]string{
		"Region!STRING:0|BuildKey!STRING:0|CDNConfig!HEX:16|CDNBuild!HEX:16|BuildId!DEC:4",
		"eu|ptr|" + cdnConfig + "|" + cdnBuild + "|12345",
		"us|live|" + strings.Repeat("11", 16) + "|" + strings.Repeat("22", 16) + "|54321",
	}, "\n")

	// BuildKey takes precedence over Region when both are supplied.
	d, err := ParseBuildInfo([]byte(data), "us", "ptr")
	require.NoError(t, err)
	require.EqualValues(t, 12345, d.BuildNumber)
}

func TestParseBuildDb(t *testing.T) {
	cdnConfig := strings.Repeat("ab", 16)
	data := "CDNConfig|" + cdnConfig + "\nBuildId|999"
	d, err := ParseBuildDb([]byte(data), "", "")
	require.NoError(t, err)
	require.EqualValues(t, 999, d.BuildNumber)
}

func TestParseBuildDbEmpty(t *testing.T) {
	_, err := ParseBuildDb([]byte(""), "", "")
	require.ErrorIs(t, err, ErrNotFound)
}
