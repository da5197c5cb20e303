package rootdispatch

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cascfs/casc/internal/bytesutil"
	"github.com/cascfs/casc/internal/digest"
)

// InstallMagic identifies an INSTALL manifest: "IN".
var InstallMagic = [2]byte{'I', 'N'}

// InstallEntry is one parsed INSTALL record: a logical name, the CKey that
// names it, and its declared size. ParseInstall does not fill Tags.
type InstallEntry struct {
	Name string
	CKey digest.CKey
	Size int64
	Tags []bool
}

// ParseInstall decodes the INSTALL manifest layout described by
// CascCommon.h's CASC_CKEY_ENTRY1 and CascOpenStorage.cpp's
// LoadInstallFile: magic "IN", a version byte, an ekey-length byte, a
// big-endian tag count, a big-endian entry count, a tag section of
// {name(NUL-terminated), type[2], bit width[4 BE], bitmap[ceil(width/8)]}
// (a truncated bitmap is rejected with ErrBadFormat), and then entryCount
// records of {name(NUL-terminated), ckey[ekeyLen], size[4 BE]}.
//
// Only ekeyLen == digest.Size is supported; CascCommon.h notes older
// clients used an 9-byte truncated key here, which this engine treats as
// ErrBadFormat since INSTALL-sourced entries need a full CKey to seed the
// catalog.
func ParseInstall(data []byte) ([]InstallEntry, error) {
	if len(data) < 2 || !bytes.Equal(data[:2], InstallMagic[:]) {
		return nil, fmt.Errorf("rootdispatch: parse install: %w", ErrBadFormat)
	}
	if len(data) < 10 {
		return nil, fmt.Errorf("rootdispatch: parse install: %w", ErrBadFormat)
	}
	_ = data[2] // version, unused
	ekeyLen := int(data[3])
	if ekeyLen != digest.Size {
		return nil, fmt.Errorf("rootdispatch: parse install: unsupported ekey length %d: %w", ekeyLen, ErrBadFormat)
	}
	tagCount := binary.BigEndian.Uint16(data[4:6])
	entryCount := binary.BigEndian.Uint32(data[6:10])

	off := 10
	type tagDef struct {
		name     string
		bitWidth uint32
	}
	tags := make([]tagDef, 0, tagCount)
	for i := uint16(0); i < tagCount; i++ {
		nul := bytes.IndexByte(data[off:], 0)
		if nul < 0 {
			return nil, fmt.Errorf("rootdispatch: parse install: truncated tag name: %w", ErrBadFormat)
		}
		name := string(data[off : off+nul])
		off += nul + 1
		if off+6 > len(data) {
			return nil, fmt.Errorf("rootdispatch: parse install: truncated tag header: %w", ErrBadFormat)
		}
		off += 2 // tag type, unused by this engine
		bitWidth := binary.BigEndian.Uint32(data[off : off+4])
		off += 4
		byteWidth := int((bitWidth + 7) / 8)
		if off+byteWidth > len(data) {
			return nil, fmt.Errorf("rootdispatch: parse install: truncated tag bitmap: %w", ErrBadFormat)
		}
		off += byteWidth
		tags = append(tags, tagDef{name: name, bitWidth: bitWidth})
	}
	_ = tags // tag bitmaps are positional against entry index; name retained for diagnostics only

	entries := make([]InstallEntry, 0, entryCount)
	for i := uint32(0); i < entryCount; i++ {
		nul := bytes.IndexByte(data[off:], 0)
		if nul < 0 {
			return nil, fmt.Errorf("rootdispatch: parse install: truncated entry name: %w", ErrBadFormat)
		}
		name := string(data[off : off+nul])
		off += nul + 1
		if off+ekeyLen+4 > len(data) {
			return nil, fmt.Errorf("rootdispatch: parse install: truncated entry record: %w", ErrBadFormat)
		}
		ck := digest.CKeyFromBytes(data[off : off+ekeyLen])
		off += ekeyLen
		size := int64(bytesutil.ReadUint32BE(data[off : off+4]))
		off += 4
		entries = append(entries, InstallEntry{Name: name, CKey: ck, Size: size})
	}
	return entries, nil
}
