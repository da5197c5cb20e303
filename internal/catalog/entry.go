package catalog

import "github.com/cascfs/casc/internal/digest"

// Flags is a bitset drawn from the closed set documented on the constants below.
type Flags uint16

const (
	// HasCKey is set once an entry's content digest is known.
	HasCKey Flags = 1 << iota
	// HasEKey is set once an entry's encoded digest is known, either in full
	// or as its 9-byte lookup prefix only (then HasEKeyPartial is set too).
	HasEKey
	// HasEKeyPartial is set when only the 9-byte lookup prefix of the
	// encoded digest is known; cleared when a later ingest supplies the
	// full 16-byte value.
	HasEKeyPartial
	// InEncoding is set once the entry has been seen in the ENCODING manifest.
	InEncoding
	// InDownload is set once the entry has been seen in the DOWNLOAD manifest.
	InDownload
	// InBuild is set for entries reachable from the build/CDN configuration
	// (the well-known files).
	InBuild
	// FilePatch marks a synthetic entry created for the PATCH well-known
	// file when it was absent from every index and the storage is online.
	FilePatch
)

// UnknownSize is the sentinel for an unresolved content_size or encoded_size.
const UnknownSize int64 = -1

// UnresolvedStorageOffset is the sentinel ArchiveIndex meaning "not locally
// resolvable", matching CascCommon.h's use of an out-of-range archive index.
const UnresolvedStorageOffset = -1

// StorageOffset locates an encoded blob within the local archive files.
type StorageOffset struct {
	ArchiveIndex int   // UnresolvedStorageOffset if not locally resolvable
	Offset       int64 // byte offset within the archive
}

// Resolved reports whether the offset names a real archive location.
func (o StorageOffset) Resolved() bool { return o.ArchiveIndex != UnresolvedStorageOffset }

// Entry is one catalog row: everything known about a single logical file's
// backing bytes, merged from whichever of index/ENCODING/DOWNLOAD mentioned it.
//
// Entry pointers are stable for the lifetime of the owning Store (see
// Store.Reserve) so that both indexes and root handlers may retain them.
type Entry struct {
	CKey          digest.CKey
	EKey          digest.EKey
	StorageOffset StorageOffset
	EncodedSize   int64
	ContentSize   int64
	SpanCount     int
	RefCount      int
	TagBitmask    uint64
	Priority      int8
	Flags         Flags
}

// newEntry returns a zero entry with unknown sizes and an unresolved offset.
func newEntry() Entry {
	return Entry{
		StorageOffset: StorageOffset{ArchiveIndex: UnresolvedStorageOffset},
		EncodedSize:   UnknownSize,
		ContentSize:   UnknownSize,
		SpanCount:     1,
	}
}
