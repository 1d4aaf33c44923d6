package vfs_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/icrashstuff/ndsvfs/bytesource"
	"github.com/icrashstuff/ndsvfs/vfs"
)

// buildCartridge assembles a minimal but structurally valid NDS image: a
// 512-byte header, tiny arm7/arm9 blobs, a one-entry FAT, an FNT describing
// a single root file "a.txt", and that file's data.
func buildCartridge(t *testing.T) []byte {
	t.Helper()

	const (
		arm9Offset = 0x200
		arm7Offset = 0x210
		fatOffset  = 0x220
		fntOffset  = 0x228
		dataOffset = 0x300
	)
	fileData := []byte("HELLO")

	buf := make([]byte, 0x400)

	copy(buf[0x00:], "MINIMAL CART")
	copy(buf[0x0C:], "TEST")
	copy(buf[0x10:], "01")

	le32 := binary.LittleEndian.PutUint32
	le16 := binary.LittleEndian.PutUint16

	le32(buf[0x20:], arm9Offset)
	le32(buf[0x24:], 0x02004000)
	le32(buf[0x28:], 0x02004000)
	le32(buf[0x2C:], 16)

	le32(buf[0x30:], arm7Offset)
	le32(buf[0x34:], 0x02380000)
	le32(buf[0x38:], 0x02380000)
	le32(buf[0x3C:], 16)

	le32(buf[0x40:], fntOffset)
	le32(buf[0x44:], 15)
	le32(buf[0x48:], fatOffset)
	le32(buf[0x4C:], 8)

	le32(buf[0x84:], 0x200) // rom_size_header

	copy(buf[arm9Offset:], bytes.Repeat([]byte{0xA9}, 16))
	copy(buf[arm7Offset:], bytes.Repeat([]byte{0xA7}, 16))

	// FAT: one entry covering fileData at dataOffset.
	le32(buf[fatOffset:], dataOffset)
	le32(buf[fatOffset+4:], dataOffset+uint32(len(fileData)))

	// FNT: one root directory, one file entry "a.txt".
	le32(buf[fntOffset:], 8) // entry0.sub_entry_offset
	le16(buf[fntOffset+4:], 0)
	le16(buf[fntOffset+6:], 1) // number_of_dirs
	buf[fntOffset+8] = 5       // type: file, name len 5
	copy(buf[fntOffset+9:], "a.txt")
	buf[fntOffset+14] = 0 // terminator

	copy(buf[dataOffset:], fileData)

	crc := bytesource.CRC16ARC(buf[:0x15E])
	le16(buf[0x15E:], crc)

	return buf
}

// buildCartridgeNoNitroFS assembles a minimal valid NDS image with no
// FAT/FNT/overlay/icon at all: offset=0, size=0 for each, which is a
// structurally valid header per the offset-implies-size invariant.
func buildCartridgeNoNitroFS(t *testing.T) []byte {
	t.Helper()

	const (
		arm9Offset = 0x200
		arm7Offset = 0x210
	)

	buf := make([]byte, 0x300)

	copy(buf[0x00:], "MINIMAL CART")
	copy(buf[0x0C:], "TEST")
	copy(buf[0x10:], "01")

	le32 := binary.LittleEndian.PutUint32
	le16 := binary.LittleEndian.PutUint16

	le32(buf[0x20:], arm9Offset)
	le32(buf[0x24:], 0x02004000)
	le32(buf[0x28:], 0x02004000)
	le32(buf[0x2C:], 16)

	le32(buf[0x30:], arm7Offset)
	le32(buf[0x34:], 0x02380000)
	le32(buf[0x38:], 0x02380000)
	le32(buf[0x3C:], 16)

	// FAT/FNT/overlay offsets and sizes are all left at zero.
	le32(buf[0x84:], 0x200) // rom_size_header

	copy(buf[arm9Offset:], bytes.Repeat([]byte{0xA9}, 16))
	copy(buf[arm7Offset:], bytes.Repeat([]byte{0xA7}, 16))

	crc := bytesource.CRC16ARC(buf[:0x15E])
	le16(buf[0x15E:], crc)

	return buf
}

func TestOpenWithoutFNTFAT(t *testing.T) {
	t.Parallel()
	buf := buildCartridgeNoNitroFS(t)
	src := bytesource.FromReaderAt(bytes.NewReader(buf))
	m, err := vfs.Open(src, vfs.OpenOptions{CheckCRC: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	want := map[string]bool{
		"header":       false,
		"bin/arm7.bin": false,
		"bin/arm9.bin": false,
		"bin/fat.bin":  false,
		"bin/fnt.bin":  false,
	}
	got := map[string]bool{}
	for _, e := range m.Enumerate() {
		got[e.Path] = e.IsDir
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(got), len(want), got)
	}
	for p, isDir := range want {
		gotDir, ok := got[p]
		if !ok {
			t.Errorf("missing entry %q", p)
			continue
		}
		if gotDir != isDir {
			t.Errorf("entry %q: IsDir=%v, want %v", p, gotDir, isDir)
		}
	}
}

func openMount(t *testing.T) *vfs.Mount {
	t.Helper()
	buf := buildCartridge(t)
	src := bytesource.FromReaderAt(bytes.NewReader(buf))
	m, err := vfs.Open(src, vfs.OpenOptions{CheckCRC: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return m
}

func TestOpenAndEnumerate(t *testing.T) {
	t.Parallel()
	m := openMount(t)

	want := map[string]bool{
		"header":        false,
		"bin/arm7.bin":  false,
		"bin/arm9.bin":  false,
		"bin/fat.bin":   false,
		"bin/fnt.bin":   false,
		"nitrofs":       true,
		"nitrofs/a.txt": false,
	}
	got := map[string]bool{}
	for _, e := range m.Enumerate() {
		got[e.Path] = e.IsDir
	}
	for p, isDir := range want {
		gotDir, ok := got[p]
		if !ok {
			t.Errorf("missing entry %q", p)
			continue
		}
		if gotDir != isDir {
			t.Errorf("entry %q: IsDir=%v, want %v", p, gotDir, isDir)
		}
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()
	m := openMount(t)

	data, err := m.Read("nitrofs/a.txt", 0, 5)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "HELLO" {
		t.Errorf("got %q, want %q", data, "HELLO")
	}

	arm9, err := m.Read("bin/arm9.bin", 0, 16)
	if err != nil {
		t.Fatalf("Read arm9: %v", err)
	}
	if !bytes.Equal(arm9, bytes.Repeat([]byte{0xA9}, 16)) {
		t.Errorf("unexpected arm9 contents: %v", arm9)
	}
}

func TestReadFilePartialRange(t *testing.T) {
	t.Parallel()
	m := openMount(t)

	mid, err := m.Read("nitrofs/a.txt", 1, 3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(mid) != "ELL" {
		t.Errorf("got %q, want %q", mid, "ELL")
	}

	// length longer than what remains must clamp, not read past the file.
	tail, err := m.Read("nitrofs/a.txt", 3, 100)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(tail) != "LO" {
		t.Errorf("got %q, want %q", tail, "LO")
	}

	if _, err := m.Read("nitrofs/a.txt", 6, 1); err == nil {
		t.Error("expected error for offset past end of file")
	}
}

func TestReadDirectoryFails(t *testing.T) {
	t.Parallel()
	m := openMount(t)
	if _, err := m.Read("nitrofs", 0, 1); err == nil {
		t.Error("expected error reading a directory")
	}
}

func TestStatNotFound(t *testing.T) {
	t.Parallel()
	m := openMount(t)
	if _, err := m.Stat("nope"); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestList(t *testing.T) {
	t.Parallel()
	m := openMount(t)
	children := m.List("nitrofs")
	if len(children) != 1 || children[0].Path != "nitrofs/a.txt" {
		t.Errorf("List(nitrofs) = %+v, want [nitrofs/a.txt]", children)
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	t.Parallel()
	src := bytesource.FromReaderAt(bytes.NewReader(bytes.Repeat([]byte{0xFF}, 512)))
	if _, err := vfs.Open(src, vfs.OpenOptions{}); err == nil {
		t.Error("expected error opening a non-NDS buffer")
	}
}
