// Package cdnconfig parses the CDN-config and CDN-build key-value text
// documents: the archive-group/archives/patch-archive key arrays, and the
// (CKey, EKey, content_size) triples for the well-known files.
package cdnconfig

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/cascfs/casc/internal/digest"
)

// Triple is the (CKey, EKey, content_size) bundle the CDN-build document
// carries for each well-known file; fields are left at their unknown
// sentinel when the document omits that file's row.
type Triple struct {
	CKey        digest.CKey
	EKey        digest.EKey
	ContentSize int64
}

// Config is the parsed CDN-config document.
type Config struct {
	ArchiveGroup      []digest.CKey
	Archives          []digest.CKey
	PatchArchiveGroup []digest.CKey
	PatchArchives     []digest.CKey
}

// Build is the parsed CDN-build document.
type Build struct {
	Encoding Triple
	Download Triple
	Install  Triple
	Root     Triple
	Patch    Triple
	Size     Triple
	VFSRoot  Triple
}

// parseKV reads a "key = value" (or "key=value") line document.
func parseKV(data []byte) map[string]string {
	out := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}

func parseKeyList(s string) []digest.CKey {
	if s == "" {
		return nil
	}
	fields := strings.Fields(s)
	out := make([]digest.CKey, 0, len(fields))
	for _, f := range fields {
		ck, err := digest.ParseHexCKey(f)
		if err != nil {
			continue
		}
		out = append(out, ck)
	}
	return out
}

// ParseConfig parses a CDN-config document.
func ParseConfig(data []byte) Config {
	kv := parseKV(data)
	return Config{
		ArchiveGroup:      parseKeyList(kv["archive-group"]),
		Archives:          parseKeyList(kv["archives"]),
		PatchArchiveGroup: parseKeyList(kv["patch-archive-group"]),
		PatchArchives:     parseKeyList(kv["patch-archives"]),
	}
}

// parseTriple reads "<name> = <ckey> <ekey> <size>" (ekey and size
// optional; missing fields are left at their unknown sentinel).
func parseTriple(kv map[string]string, name string) Triple {
	t := Triple{ContentSize: -1}
	raw, ok := kv[name]
	if !ok || raw == "" {
		return t
	}
	fields := strings.Fields(raw)
	if len(fields) > 0 {
		if ck, err := digest.ParseHexCKey(fields[0]); err == nil {
			t.CKey = ck
		}
	}
	if len(fields) > 1 {
		if ek, err := digest.ParseHexEKey(fields[1]); err == nil {
			t.EKey = ek
		}
	}
	if len(fields) > 2 {
		if n, err := strconv.ParseInt(fields[2], 10, 64); err == nil {
			t.ContentSize = n
		}
	}
	return t
}

// ParseBuild parses a CDN-build document, extracting the seven well-known
// triples beyond the archive-group arrays (§4.4's expanded scope).
func ParseBuild(data []byte) Build {
	kv := parseKV(data)
	return Build{
		Encoding: parseTriple(kv, "encoding"),
		Download: parseTriple(kv, "download"),
		Install:  parseTriple(kv, "install"),
		Root:     parseTriple(kv, "root"),
		Patch:    parseTriple(kv, "patch"),
		Size:     parseTriple(kv, "size"),
		VFSRoot:  parseTriple(kv, "vfs-root"),
	}
}
