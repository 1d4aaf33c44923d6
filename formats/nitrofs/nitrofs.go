// Package nitrofs parses the NitroROM file allocation table (FAT), file
// name table (FNT), and overlay tables embedded in an NDS cartridge, and
// walks the FNT's directory tree into a flat list of virtual entries.
package nitrofs

import (
	"errors"
	"fmt"

	"github.com/icrashstuff/ndsvfs/bytesource"
)

var (
	// ErrTruncated is returned when a table is shorter than its own fields demand.
	ErrTruncated = errors.New("nitrofs: truncated table")
	// ErrOutOfRange is returned when an FNT entry references a FAT index or
	// sub-directory id outside the bounds of the table it indexes into.
	ErrOutOfRange = errors.New("nitrofs: index out of range")
	// ErrTooDeep is returned when directory recursion exceeds MaxDepth, which
	// guards against a crafted FNT with a directory cycle.
	ErrTooDeep = errors.New("nitrofs: directory tree too deep")
)

// MaxDepth bounds FNT directory recursion. The deepest directory structure
// in a real NitroROM is a handful of levels; this is generous headroom
// against a hostile or corrupt table that cycles back on itself.
const MaxDepth = 64

// FATEntry is one file allocation table record: the half-open byte range
// [Start, End) of a file's data within the cartridge image.
type FATEntry struct {
	Start uint32
	End   uint32
}

// Size reports the file's length; it is zero if End <= Start.
func (e FATEntry) Size() uint32 {
	if e.End <= e.Start {
		return 0
	}
	return e.End - e.Start
}

const fatEntrySize = 8

// ParseFAT decodes a raw file_allocation_table buffer into FATEntry records.
func ParseFAT(buf []byte) ([]FATEntry, error) {
	if len(buf)%fatEntrySize != 0 {
		return nil, fmt.Errorf("%w: fat size %d not a multiple of %d", ErrTruncated, len(buf), fatEntrySize)
	}
	n := len(buf) / fatEntrySize
	out := make([]FATEntry, n)
	for i := 0; i < n; i++ {
		off := i * fatEntrySize
		start, err := bytesource.U32LEAt(buf, off)
		if err != nil {
			return nil, err
		}
		end, err := bytesource.U32LEAt(buf, off+4)
		if err != nil {
			return nil, err
		}
		out[i] = FATEntry{Start: start, End: end}
	}
	return out, nil
}

// OverlayEntry is one overlay table record (arm9ovt.bin / arm7ovt.bin).
type OverlayEntry struct {
	OverlayID              uint32
	RAMAddress             uint32
	RAMSize                uint32
	BSSSize                uint32
	StaticInitializerStart uint32
	StaticInitializerEnd   uint32
	FATFileID              uint32
	Reserved               uint32
}

const overlayEntrySize = 32

// ParseOverlayTable decodes a raw overlay table buffer into OverlayEntry
// records. A buffer whose length isn't a multiple of 32 bytes is rejected,
// matching the original loader's "size %% 32 == 0" guard.
func ParseOverlayTable(buf []byte) ([]OverlayEntry, error) {
	if len(buf)%overlayEntrySize != 0 {
		return nil, fmt.Errorf("%w: overlay table size %d not a multiple of %d", ErrTruncated, len(buf), overlayEntrySize)
	}
	n := len(buf) / overlayEntrySize
	out := make([]OverlayEntry, n)
	for i := 0; i < n; i++ {
		off := i * overlayEntrySize
		fields := make([]uint32, 8)
		for j := range fields {
			v, err := bytesource.U32LEAt(buf, off+j*4)
			if err != nil {
				return nil, err
			}
			fields[j] = v
		}
		out[i] = OverlayEntry{
			OverlayID:              fields[0],
			RAMAddress:             fields[1],
			RAMSize:                fields[2],
			BSSSize:                fields[3],
			StaticInitializerStart: fields[4],
			StaticInitializerEnd:   fields[5],
			FATFileID:              fields[6],
			Reserved:               fields[7],
		}
	}
	return out, nil
}

// Entry is a single file or directory discovered while walking the FNT.
type Entry struct {
	// Path is the slash-separated path relative to the nitrofs root, with no
	// leading slash (e.g. "sound/bgm.sad").
	Path  string
	IsDir bool
	// Start/End/Size are meaningful only when IsDir is false.
	Start uint32
	End   uint32
}

// Size reports the file's length; zero for directories.
func (e Entry) Size() uint32 {
	if e.IsDir || e.End <= e.Start {
		return 0
	}
	return e.End - e.Start
}

const fntMainEntrySize = 8

type fntMainEntry struct {
	subEntryOffset  uint32
	firstFATEntryID uint16
	// parentOrCount is number_of_dirs for entry 0, parent_id + 0xF000 for all others.
	parentOrCount uint16
}

func readFNTMainEntry(fnt []byte, index int) (fntMainEntry, error) {
	off := index * fntMainEntrySize
	if off < 0 || off+fntMainEntrySize > len(fnt) {
		return fntMainEntry{}, fmt.Errorf("%w: fnt main entry %d", ErrOutOfRange, index)
	}
	subOff, err := bytesource.U32LEAt(fnt, off)
	if err != nil {
		return fntMainEntry{}, err
	}
	firstFAT, err := bytesource.U16LEAt(fnt, off+4)
	if err != nil {
		return fntMainEntry{}, err
	}
	parentOrCount, err := bytesource.U16LEAt(fnt, off+6)
	if err != nil {
		return fntMainEntry{}, err
	}
	return fntMainEntry{subEntryOffset: subOff, firstFATEntryID: firstFAT, parentOrCount: parentOrCount}, nil
}

// Sub-entry type byte layout: the top bit marks a directory, the low seven
// bits are the name length. A name length of 0 ends the subtable.
const (
	subEntryIsDirMask = 0x80
	subEntryLenMask   = 0x7F
)

// Walk decodes the FNT's directory tree into a flat slice of entries, each
// annotated with its byte range looked up from fat. fat is the cartridge's
// parsed file allocation table. maxDepth caps directory recursion; a value
// <= 0 falls back to MaxDepth.
func Walk(fnt []byte, fat []FATEntry, maxDepth int) ([]Entry, error) {
	if maxDepth <= 0 {
		maxDepth = MaxDepth
	}
	if len(fnt) < fntMainEntrySize {
		return nil, fmt.Errorf("%w: fnt shorter than one main entry", ErrTruncated)
	}
	root, err := readFNTMainEntry(fnt, 0)
	if err != nil {
		return nil, err
	}
	numDirs := int(root.parentOrCount)
	if numDirs < 1 {
		numDirs = 1
	}

	var out []Entry
	if err := walkDir(fnt, fat, 0, numDirs, "", 0, maxDepth, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkDir(fnt []byte, fat []FATEntry, dirIndex int, numDirs int, parentPath string, depth int, maxDepth int, out *[]Entry) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: exceeded depth %d at %q", ErrTooDeep, maxDepth, parentPath)
	}
	if dirIndex < 0 || dirIndex >= numDirs {
		return fmt.Errorf("%w: directory index %d (have %d dirs)", ErrOutOfRange, dirIndex, numDirs)
	}

	main, err := readFNTMainEntry(fnt, dirIndex)
	if err != nil {
		return err
	}

	pos := int(main.subEntryOffset)
	fileID := int(main.firstFATEntryID)

	for {
		if pos < 0 || pos >= len(fnt) {
			return fmt.Errorf("%w: fnt subtable entry at %d", ErrOutOfRange, pos)
		}
		typ := fnt[pos]
		nameLen := int(typ & subEntryLenMask)
		if nameLen == 0 {
			break
		}
		isDir := typ&subEntryIsDirMask != 0
		pos++

		if pos+nameLen > len(fnt) {
			return fmt.Errorf("%w: fnt entry name at %d", ErrOutOfRange, pos)
		}
		name := string(fnt[pos : pos+nameLen])
		pos += nameLen

		childPath := name
		if parentPath != "" {
			childPath = parentPath + "/" + name
		}

		if isDir {
			subDirIDRaw, err := bytesource.U16LEAt(fnt, pos)
			if err != nil {
				return err
			}
			pos += 2
			subDirID := int(subDirIDRaw) - 0xF000

			*out = append(*out, Entry{Path: childPath, IsDir: true})
			if err := walkDir(fnt, fat, subDirID, numDirs, childPath, depth+1, maxDepth, out); err != nil {
				return err
			}
		} else {
			if fileID < 0 || fileID >= len(fat) {
				return fmt.Errorf("%w: fat file id %d (have %d)", ErrOutOfRange, fileID, len(fat))
			}
			f := fat[fileID]
			*out = append(*out, Entry{Path: childPath, IsDir: false, Start: f.Start, End: f.End})
			fileID++
		}
	}
	return nil
}
