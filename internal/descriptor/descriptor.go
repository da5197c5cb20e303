// Package descriptor loads the top-level build descriptor — ".build.info",
// ".build.db", or the CDN "versions" table — and selects the active row by
// region or build key.
package descriptor

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cascfs/casc/internal/digest"
)

// ErrNotFound is returned when the requested region/build key row does not
// exist in a descriptor, or when a .build.db document has no rows.
var ErrNotFound = errors.New("descriptor: not found")

// Features mirrors CascCommon.h's CASC_FEATURE bitset, scoped to what the
// build descriptor's columns can tell the orchestrator.
type Features uint8

const (
	FeatureDataArchives Features = 1 << iota
	FeatureDataFiles
	FeatureOnline
	FeatureTags
	FeatureForceDownload
)

// Descriptor is the selected row's digests and metadata, sufficient to
// fetch the CDN-config and CDN-build documents.
type Descriptor struct {
	CDNConfigCKey digest.CKey
	CDNBuildCKey  digest.CKey
	DefaultLocale uint32
	BuildNumber   uint32
	Features      Features
}

// rowMatches reports whether row is the one buildKey/region select, per
// §4.2's "selects the active row by region/build-key" precedence: when a
// build key is given only the row's BuildKey is compared and region is
// ignored; otherwise the row's Region is compared; with neither selector
// every row is accepted.
func rowMatches(row map[string]string, region, buildKey string) bool {
	if buildKey != "" {
		return row["BuildKey"] == buildKey
	}
	if region != "" {
		return row["Region"] == region
	}
	return true
}

// ParseBuildInfo parses the pipe-delimited ".build.info" table: a header
// row of "name!type:size" columns followed by data rows, one per region.
// Grounded on the .build.info scanners in the example pack and
// CascOpenStorage.cpp's LoadBuildInfo.
func ParseBuildInfo(data []byte, region, buildKey string) (Descriptor, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var columns []string
	var selected map[string]string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if columns == nil {
			columns = make([]string, len(fields))
			for i, f := range fields {
				name, _, _ := strings.Cut(f, "!")
				columns[i] = strings.TrimSpace(name)
			}
			continue
		}
		row := make(map[string]string, len(columns))
		for i, f := range fields {
			if i < len(columns) {
				row[columns[i]] = strings.TrimSpace(f)
			}
		}
		if rowMatches(row, region, buildKey) {
			selected = row
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return Descriptor{}, fmt.Errorf("descriptor: scan build.info: %w", err)
	}
	if selected == nil {
		return Descriptor{}, fmt.Errorf("descriptor: region %q build key %q: %w", region, buildKey, ErrNotFound)
	}
	return rowToDescriptor(selected)
}

// ParseBuildDb parses the older "key|value" per-line ".build.db" format
// used by pre-Warlords installs (CascCommon.h's CascBuildDb constant). The
// format carries exactly one row, so region/buildKey are only checked
// against it rather than used to pick among several.
func ParseBuildDb(data []byte, region, buildKey string) (Descriptor, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	row := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "|")
		if !ok {
			continue
		}
		row[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return Descriptor{}, fmt.Errorf("descriptor: scan build.db: %w", err)
	}
	if len(row) == 0 {
		return Descriptor{}, fmt.Errorf("descriptor: empty build.db: %w", ErrNotFound)
	}
	if !rowMatches(row, region, buildKey) {
		return Descriptor{}, fmt.Errorf("descriptor: region %q build key %q: %w", region, buildKey, ErrNotFound)
	}
	return rowToDescriptor(row)
}

// ParseVersions parses the CDN product-versions table: a pipe-delimited
// table keyed by Region, used when no local build file exists but a CDN
// endpoint was supplied.
func ParseVersions(data []byte, region, buildKey string) (Descriptor, error) {
	return ParseBuildInfo(data, region, buildKey)
}

func rowToDescriptor(row map[string]string) (Descriptor, error) {
	d := Descriptor{}
	if v, ok := row["CDNConfig"]; ok && v != "" {
		ck, err := digest.ParseHexCKey(v)
		if err != nil {
			return Descriptor{}, fmt.Errorf("descriptor: CDNConfig: %w", err)
		}
		d.CDNConfigCKey = ck
	}
	if v, ok := row["CDNBuild"]; ok && v != "" {
		ck, err := digest.ParseHexCKey(v)
		if err != nil {
			return Descriptor{}, fmt.Errorf("descriptor: CDNBuild: %w", err)
		}
		d.CDNBuildCKey = ck
	} else if v, ok := row["BuildConfig"]; ok && v != "" {
		ck, err := digest.ParseHexCKey(v)
		if err != nil {
			return Descriptor{}, fmt.Errorf("descriptor: BuildConfig: %w", err)
		}
		d.CDNBuildCKey = ck
	}
	if v, ok := row["BuildId"]; ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err == nil {
			d.BuildNumber = uint32(n)
		}
	}
	if v, ok := row["DefaultLocale"]; ok && v != "" {
		n, err := strconv.ParseUint(v, 0, 32)
		if err == nil {
			d.DefaultLocale = uint32(n)
		}
	}
	return d, nil
}
