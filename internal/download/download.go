// Package download parses the DOWNLOAD manifest: a versioned entry table
// carrying encoded size, priority, and tag-membership bitmaps, and feeds it
// into the catalog store.
package download

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cascfs/casc/internal/bytesutil"
	"github.com/cascfs/casc/internal/catalog"
	"github.com/cascfs/casc/internal/digest"
)

// Magic identifies a DOWNLOAD manifest: "DL".
var Magic = [2]byte{'D', 'L'}

// ErrBadFormat is returned when the header or an entry does not match the
// expected shape for its declared version.
var ErrBadFormat = errors.New("download: bad format")

// Tag is a parsed tag descriptor: a name, a caller-meaningful value, and
// the per-entry membership bitmap as declared in the file (possibly
// truncated; see bytesutil.BitmapBit).
type Tag struct {
	Name   string
	Value  uint16
	Bitmap []byte
}

// Result is the outcome of a Load call: the tags declared by the manifest,
// for callers that want {name, value} pairs (StorageInfo's Tags class).
type Result struct {
	Tags []Tag
}

const maxTags = 64

// Load parses the full DOWNLOAD manifest at any of versions 1-3 and
// ingests every entry into store, OR-ing tag membership into each entry's
// TagBitmask.
func Load(data []byte, store *catalog.Store) (Result, error) {
	if len(data) < 3 || data[0] != Magic[0] || data[1] != Magic[1] {
		return Result{}, fmt.Errorf("download: parse header: %w", ErrBadFormat)
	}
	version := data[2]
	if version < 1 || version > 3 {
		return Result{}, fmt.Errorf("download: unsupported version %d: %w", version, ErrBadFormat)
	}
	off := 3
	if len(data) < off+1+2+4+2 {
		return Result{}, fmt.Errorf("download: truncated v1 header: %w", ErrBadFormat)
	}
	ekeyLength := int(data[off])
	off++
	hasChecksum := data[off] != 0
	off++
	entryCount := binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	tagCount := binary.BigEndian.Uint16(data[off : off+2])
	off += 2

	if ekeyLength > digest.Size {
		return Result{}, fmt.Errorf("download: ekey length %d exceeds %d: %w", ekeyLength, digest.Size, ErrBadFormat)
	}

	flagByteSize := 0
	if version >= 2 {
		if off+1 > len(data) {
			return Result{}, fmt.Errorf("download: truncated v2 header: %w", ErrBadFormat)
		}
		flagByteSize = int(data[off])
		off++
	}
	if version >= 3 {
		if off+1 > len(data) {
			return Result{}, fmt.Errorf("download: truncated v3 header: %w", ErrBadFormat)
		}
		off++ // base_priority, unused beyond per-entry priority
	}

	type parsedEntry struct {
		ekey        digest.EKey
		encodedSize int64
		priority    int8
	}
	entries := make([]parsedEntry, 0, entryCount)
	for i := uint32(0); i < entryCount; i++ {
		need := ekeyLength + 5 + 1
		if hasChecksum {
			need += 4
		}
		need += flagByteSize
		if off+need > len(data) {
			return Result{}, fmt.Errorf("download: truncated entry %d: %w", i, ErrBadFormat)
		}
		ek := digest.EKeyFromBytes(data[off : off+ekeyLength])
		off += ekeyLength
		encodedSize := int64(bytesutil.ReadUint40BE(data[off : off+5]))
		off += 5
		priority := int8(data[off])
		off++
		if hasChecksum {
			off += 4
		}
		off += flagByteSize
		entries = append(entries, parsedEntry{ekey: ek, encodedSize: encodedSize, priority: priority})
	}

	if tagCount > maxTags {
		return Result{}, fmt.Errorf("download: tag count %d exceeds %d: %w", tagCount, maxTags, ErrBadFormat)
	}
	bitmapLen := (int(entryCount) + 7) / 8
	tags := make([]Tag, 0, tagCount)
	for t := uint16(0); t < tagCount; t++ {
		nul := bytes.IndexByte(data[off:], 0)
		if nul < 0 {
			return Result{}, fmt.Errorf("download: truncated tag name: %w", ErrBadFormat)
		}
		name := string(data[off : off+nul])
		off += nul + 1
		if off+2 > len(data) {
			return Result{}, fmt.Errorf("download: truncated tag value: %w", ErrBadFormat)
		}
		value := binary.BigEndian.Uint16(data[off : off+2])
		off += 2

		avail := len(data) - off
		n := bitmapLen
		if n > avail {
			n = avail // final tag's bitmap may be truncated; missing bits read as 0
		}
		bitmap := data[off : off+n]
		off += n

		tags = append(tags, Tag{Name: name, Value: value, Bitmap: bitmap})
	}

	ekeyPartial := ekeyLength < digest.Size
	flags := catalog.HasEKey | catalog.InDownload
	if ekeyPartial {
		flags |= catalog.HasEKeyPartial
	}
	for i, pe := range entries {
		entry, err := store.InsertOrMerge(catalog.Seed{
			EKey:        pe.ekey,
			EKeyPartial: ekeyPartial,
			EncodedSize: pe.encodedSize,
			Priority:    pe.priority,
			Flags:       flags,
		})
		if err != nil {
			return Result{}, err
		}
		for j := range tags {
			if bytesutil.BitmapBit(tags[j].Bitmap, i) {
				store.AddTagBit(entry, j)
			}
		}
	}

	return Result{Tags: tags}, nil
}
