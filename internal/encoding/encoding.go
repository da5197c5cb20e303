// Package encoding parses the ENCODING manifest: a paged, content-addressed
// table mapping each file's content digest to its encoded digest and
// decoded size, and feeds it into the catalog store.
package encoding

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cascfs/casc/internal/bytesutil"
	"github.com/cascfs/casc/internal/catalog"
	"github.com/cascfs/casc/internal/digest"
)

// Magic identifies an ENCODING manifest: "EN".
var Magic = [2]byte{'E', 'N'}

// ErrBadFormat is returned when the header does not match the expected
// shape (bad magic, version, or key lengths).
var ErrBadFormat = errors.New("encoding: bad format")

// ErrFileCorrupt is returned when an internal consistency check fails: a
// page's first record disagrees with its header, or page offsets overrun
// the declared file size.
var ErrFileCorrupt = errors.New("encoding: file corrupt")

// Header holds the ENCODING file's fixed fields.
type Header struct {
	CKeyLength     uint8
	EKeyLength     uint8
	CKeyPageCount  uint32
	CKeyPageSize   int // bytes, = CKeyPageSizeKiB * 1024
	EKeyPageCount  uint32
	EKeyPageSize   int
	ESpecBlockSize uint32
}

const headerSize = 2 + 1 + 1 + 1 + 4 + 2 + 4 + 2 + 4

// ParseHeader decodes the fixed-width ENCODING header.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < headerSize {
		return Header{}, fmt.Errorf("encoding: parse header: %w", ErrBadFormat)
	}
	if data[0] != Magic[0] || data[1] != Magic[1] {
		return Header{}, fmt.Errorf("encoding: parse header: %w", ErrBadFormat)
	}
	version := data[2]
	if version != 1 {
		return Header{}, fmt.Errorf("encoding: parse header: unsupported version %d: %w", version, ErrBadFormat)
	}
	ckeyLen := data[3]
	ekeyLen := data[4]
	if ckeyLen != digest.Size || ekeyLen != digest.Size {
		return Header{}, fmt.Errorf("encoding: parse header: key length %d/%d: %w", ckeyLen, ekeyLen, ErrBadFormat)
	}
	off := 5
	ckeyPageCount := binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	ckeyPageSizeKiB := binary.BigEndian.Uint16(data[off : off+2])
	off += 2
	ekeyPageCount := binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	ekeyPageSizeKiB := binary.BigEndian.Uint16(data[off : off+2])
	off += 2
	especBlockSize := binary.BigEndian.Uint32(data[off : off+4])

	return Header{
		CKeyLength:     ckeyLen,
		EKeyLength:     ekeyLen,
		CKeyPageCount:  ckeyPageCount,
		CKeyPageSize:   int(ckeyPageSizeKiB) * 1024,
		EKeyPageCount:  ekeyPageCount,
		EKeyPageSize:   int(ekeyPageSizeKiB) * 1024,
		ESpecBlockSize: especBlockSize,
	}, nil
}

// Load parses the full ENCODING manifest and ingests every record into
// store via InsertOrMerge. Only the CKey page table is consumed; the EKey
// page table (a reverse index this engine never needs, since lookups start
// from a CKey or are resolved separately by the index reader) is skipped
// over by byte count.
//
// onPage, when non-nil, is called with the zero-based page index and total
// page count before that page is decoded, so a caller can poll a progress
// callback per page rather than once for the whole manifest. Any error it
// returns aborts Load immediately and is returned unwrapped.
func Load(data []byte, store *catalog.Store, onPage func(page, total int) error) (Header, error) {
	hdr, err := ParseHeader(data)
	if err != nil {
		return Header{}, err
	}

	pageHeaderSize := 2 * digest.Size
	off := headerSize + int(hdr.ESpecBlockSize)

	pageHeadersEnd := off + int(hdr.CKeyPageCount)*pageHeaderSize
	if pageHeadersEnd > len(data) {
		return Header{}, fmt.Errorf("encoding: page headers overrun file: %w", ErrFileCorrupt)
	}
	pageHeaders := data[off:pageHeadersEnd]
	off = pageHeadersEnd

	for p := uint32(0); p < hdr.CKeyPageCount; p++ {
		if onPage != nil {
			if err := onPage(int(p), int(hdr.CKeyPageCount)); err != nil {
				return Header{}, err
			}
		}
		hOff := int(p) * pageHeaderSize
		firstCKey := digest.CKeyFromBytes(pageHeaders[hOff : hOff+digest.Size])

		pageEnd := off + hdr.CKeyPageSize
		if pageEnd > len(data) {
			return Header{}, fmt.Errorf("encoding: page %d overruns file: %w", p, ErrFileCorrupt)
		}
		page := data[off:pageEnd]
		if err := loadPage(page, firstCKey, store); err != nil {
			return Header{}, fmt.Errorf("encoding: page %d: %w", p, err)
		}
		off = pageEnd
	}
	return hdr, nil
}

func loadPage(page []byte, firstCKey digest.CKey, store *catalog.Store) error {
	pos := 0
	first := true
	for {
		if pos+2 > len(page) {
			return fmt.Errorf("%w: truncated record header", ErrFileCorrupt)
		}
		ekeyCount := bytesutil.ReadUint16BE(page[pos : pos+2])
		pos += 2
		if ekeyCount == 0 {
			return nil // page terminator; remainder is padding
		}
		if pos+4+digest.Size > len(page) {
			return fmt.Errorf("%w: truncated record body", ErrFileCorrupt)
		}
		contentSize := int64(bytesutil.ReadUint32BE(page[pos : pos+4]))
		pos += 4
		ckey := digest.CKeyFromBytes(page[pos : pos+digest.Size])
		pos += digest.Size

		if first {
			if ckey != firstCKey {
				return fmt.Errorf("%w: first record ckey mismatch", ErrFileCorrupt)
			}
			first = false
		}

		need := int(ekeyCount) * digest.Size
		if pos+need > len(page) {
			return fmt.Errorf("%w: truncated ekey list", ErrFileCorrupt)
		}
		firstEKey := digest.EKeyFromBytes(page[pos : pos+digest.Size])
		pos += need

		_, err := store.InsertOrMerge(catalog.Seed{
			CKey:        ckey,
			EKey:        firstEKey,
			ContentSize: contentSize,
			Flags:       catalog.HasCKey | catalog.HasEKey | catalog.InEncoding,
		})
		if err != nil {
			return err
		}
	}
}
