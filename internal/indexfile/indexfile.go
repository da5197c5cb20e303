// Package indexfile reads CASC's local ".idx" index files: sorted tables
// of fixed-width records mapping an encoded digest's 9-byte prefix to its
// archive location.
//
// This engine parses a deliberately simplified header (a format tag, a
// version byte, and the archive/offset bit split) followed directly by the
// record table, whose record count is the table length divided by the record
// size; there is no footer. This stands in for Blizzard's real
// bucket-hash-keyed footer layout (CascOpenStorage.cpp's
// footer carries an ADLER32/Jenkins checksum over itself and a bucket
// index this engine never needs, since it merges every bucket file's
// records into one sorted table regardless of which bucket produced it).
package indexfile

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/cascfs/casc/internal/bytesutil"
	"github.com/cascfs/casc/internal/catalog"
	"github.com/cascfs/casc/internal/digest"
)

// Magic identifies a local index file: "IDX".
var Magic = [3]byte{'I', 'D', 'X'}

// ErrBadFormat is returned when the header or the record table does not
// match the expected shape.
var ErrBadFormat = errors.New("indexfile: bad format")

const (
	headerSize     = 3 + 1 + 1 // magic + version + offset_bits
	recordSize     = digest.EKeyPrefixSize + 5 + 4
	defaultVersion = 1
)

// Record is one parsed index entry.
type Record struct {
	EKeyPrefix  [digest.EKeyPrefixSize]byte
	ArchiveIdx  int
	Offset      int64
	EncodedSize int64
}

// Table is the merged, sorted view over every local index file loaded into
// it. Lookup is a binary search by 9-byte EKey prefix, per the component
// design.
type Table struct {
	records []Record
}

// Parse decodes a single .idx file's records. Each record's archive index
// and offset are split out of its packed 5-byte archive_and_offset field at
// the header's offset-bit boundary; a positive offsetBitsOverride replaces
// the header's value, and zero keeps it.
func Parse(data []byte, offsetBitsOverride int) ([]Record, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("indexfile: parse: %w", ErrBadFormat)
	}
	if !bytes.Equal(data[:3], Magic[:]) {
		return nil, fmt.Errorf("indexfile: parse: %w", ErrBadFormat)
	}
	version := data[3]
	if version != defaultVersion {
		return nil, fmt.Errorf("indexfile: parse: unsupported version %d: %w", version, ErrBadFormat)
	}
	offsetBits := uint(data[4])
	if offsetBitsOverride > 0 {
		offsetBits = uint(offsetBitsOverride)
	}
	if offsetBits == 0 || offsetBits >= 40 {
		return nil, fmt.Errorf("indexfile: parse: invalid offset bit split %d: %w", offsetBits, ErrBadFormat)
	}

	body := data[headerSize:]
	if len(body)%recordSize != 0 {
		return nil, fmt.Errorf("indexfile: parse: truncated record table: %w", ErrBadFormat)
	}
	count := len(body) / recordSize
	records := make([]Record, 0, count)
	for i := 0; i < count; i++ {
		rec := body[i*recordSize : (i+1)*recordSize]
		var prefix [digest.EKeyPrefixSize]byte
		copy(prefix[:], rec[:digest.EKeyPrefixSize])
		archiveIdx, offset := bytesutil.SplitPacked5(rec[digest.EKeyPrefixSize:digest.EKeyPrefixSize+5], offsetBits)
		encodedSize := int64(bytesutil.ReadUint32LE(rec[digest.EKeyPrefixSize+5:]))
		records = append(records, Record{
			EKeyPrefix:  prefix,
			ArchiveIdx:  archiveIdx,
			Offset:      offset,
			EncodedSize: encodedSize,
		})
	}
	return records, nil
}

// NewTable builds a merged, sorted Table from the records parsed out of
// every local .idx file.
func NewTable(allRecords ...[]Record) *Table {
	var merged []Record
	for _, rs := range allRecords {
		merged = append(merged, rs...)
	}
	sort.Slice(merged, func(i, j int) bool {
		return bytes.Compare(merged[i].EKeyPrefix[:], merged[j].EKeyPrefix[:]) < 0
	})
	return &Table{records: merged}
}

// Lookup finds the record for the given 9-byte EKey prefix via binary
// search over the merged table.
func (t *Table) Lookup(prefix [digest.EKeyPrefixSize]byte) (Record, bool) {
	i := sort.Search(len(t.records), func(i int) bool {
		return bytes.Compare(t.records[i].EKeyPrefix[:], prefix[:]) >= 0
	})
	if i < len(t.records) && t.records[i].EKeyPrefix == prefix {
		return t.records[i], true
	}
	return Record{}, false
}

// Len reports the number of merged records.
func (t *Table) Len() int { return len(t.records) }

// Apply resolves every record's storage location onto the catalog entries
// that already carry a matching EKey, via catalog.Store.ResolveStorageOffset.
// Records with no matching catalog entry are silently skipped: an index
// file may reference archive blobs the currently-loaded ENCODING/DOWNLOAD
// manifests never mention (a stale local cache), which is not this
// engine's concern to detect.
func (t *Table) Apply(store *catalog.Store) {
	for _, r := range t.records {
		ek := digest.EKeyFromBytes(append(append([]byte{}, r.EKeyPrefix[:]...), make([]byte, digest.Size-digest.EKeyPrefixSize)...))
		store.ResolveStorageOffset(ek, catalog.StorageOffset{ArchiveIndex: r.ArchiveIdx, Offset: r.Offset}, r.EncodedSize, 1)
	}
}
