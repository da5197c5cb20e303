package bytesutil

import "testing"

func TestReadUintBE(t *testing.T) {
	if got := ReadUint16BE([]byte{0x01, 0x02}); got != 0x0102 {
		t.Fatalf("ReadUint16BE = %#x", got)
	}
	if got := ReadUint32BE([]byte{0x01, 0x02, 0x03, 0x04}); got != 0x01020304 {
		t.Fatalf("ReadUint32BE = %#x", got)
	}
	if got := ReadUint40BE([]byte{0x01, 0x02, 0x03, 0x04, 0x05}); got != 0x0102030405 {
		t.Fatalf("ReadUint40BE = %#x", got)
	}
}

func TestReadUint32LE(t *testing.T) {
	if got := ReadUint32LE([]byte{0x04, 0x03, 0x02, 0x01}); got != 0x01020304 {
		t.Fatalf("ReadUint32LE = %#x", got)
	}
}

func TestSplitPackedRoundTrip(t *testing.T) {
	packed := PackArchiveAndOffset(7, 123456, 30)
	archiveIndex, offset := SplitPacked5(packed[:], 30)
	if archiveIndex != 7 || offset != 123456 {
		t.Fatalf("got archive=%d offset=%d", archiveIndex, offset)
	}
}

func TestBitmapBit(t *testing.T) {
	bitmap := []byte{0b10000000, 0b01000000}
	if !BitmapBit(bitmap, 0) {
		t.Fatal("bit 0 should be set")
	}
	if BitmapBit(bitmap, 1) {
		t.Fatal("bit 1 should be clear")
	}
	if !BitmapBit(bitmap, 9) {
		t.Fatal("bit 9 should be set")
	}
	// Beyond the declared length: truncated bitmap reads as zero.
	if BitmapBit(bitmap, 100) {
		t.Fatal("bit beyond bitmap length must read as zero")
	}
}

func TestAlign(t *testing.T) {
	cases := map[int]int{0: 0, 1: 8, 7: 8, 8: 8, 9: 16}
	for in, want := range cases {
		if got := Align(in, 8); got != want {
			t.Fatalf("Align(%d, 8) = %d, want %d", in, got, want)
		}
	}
}
