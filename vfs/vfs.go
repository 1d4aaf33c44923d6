// Package vfs exposes an NDS cartridge image as a flat, read-only virtual
// filesystem: the cartridge header, the arm7/arm9 binaries, the FAT/FNT
// tables and overlay tables under bin/, and the NitroROM directory tree
// under nitrofs/.
//
// This mirrors the tree documented at the top of
// original_source/util/physfs/archiver_nds.cpp, minus the PhysFS archiver
// plumbing.
package vfs

import (
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/icrashstuff/ndsvfs/bytesource"
	"github.com/icrashstuff/ndsvfs/formats/cartheader"
	"github.com/icrashstuff/ndsvfs/formats/nitrofs"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotNDS is returned by Open when the source doesn't look like an NDS
	// cartridge image.
	ErrNotNDS = errors.New("vfs: does not look like an NDS cartridge image")
	// ErrNotFound is returned when a path has no entry.
	ErrNotFound = errors.New("vfs: path not found")
	// ErrIsDirectory is returned by Read when asked to read a directory.
	ErrIsDirectory = errors.New("vfs: is a directory")
)

// bannerSize is the fixed length of the icon/title block pointed to by the
// header's icon_title_offset.
const bannerSize = 0x840

// Entry is one file or directory in the mounted tree.
type Entry struct {
	Path   string
	IsDir  bool
	Offset uint32
	Size   uint32
}

// Mount is an opened, indexed NDS cartridge image. A Mount is read-only;
// Stat, List and Enumerate are safe for concurrent use. Read does a Seek
// followed by a ReadExact on the underlying Source, so concurrent Read calls
// are safe only if that Source is. The Source returned by
// bytesource.FromReaderAt keeps its own read position and is not.
type Mount struct {
	src    bytesource.Source
	Header *cartheader.Header

	entries map[string]Entry
	order   []string
}

// OpenOptions controls how strictly Open validates the cartridge header.
type OpenOptions struct {
	// CheckCRC requires the header's stored CRC-16 to match a recomputed
	// one, in addition to the structural sanity checks.
	CheckCRC bool
	// FNTMaxDepth caps NitroROM directory recursion while walking the FNT.
	// A value <= 0 falls back to nitrofs.MaxDepth.
	FNTMaxDepth int
}

// Open reads the 512-byte header from src, validates it, and indexes the
// full bin/ and nitrofs/ tree. src is retained for later Read calls.
func Open(src bytesource.Source, opts OpenOptions) (*Mount, error) {
	raw, err := bytesource.ReadAt(src, 0, cartheader.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotNDS, err)
	}

	header, err := cartheader.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotNDS, err)
	}
	if !header.SeemsValid(opts.CheckCRC) {
		return nil, ErrNotNDS
	}

	m := &Mount{
		src:     src,
		Header:  header,
		entries: make(map[string]Entry),
	}
	if err := m.load(opts.FNTMaxDepth); err != nil {
		return nil, err
	}

	log.Debug().Str("game", header.FriendlyName()).Int("entries", len(m.order)).Msg("mounted nds cartridge")
	return m, nil
}

func (m *Mount) addFile(p string, offset, size uint32) {
	m.addEntry(Entry{Path: p, Offset: offset, Size: size})
}

func (m *Mount) addDir(p string) {
	m.addEntry(Entry{Path: p, IsDir: true})
}

func (m *Mount) addEntry(e Entry) {
	if _, exists := m.entries[e.Path]; !exists {
		m.order = append(m.order, e.Path)
	}
	m.entries[e.Path] = e
}

func (m *Mount) load(fntMaxDepth int) error {
	h := m.Header

	m.addFile("header", 0, h.RomSizeHeader)
	m.addFile("bin/arm7.bin", h.ARM7RomOffset, h.ARM7Size)
	m.addFile("bin/arm9.bin", h.ARM9RomOffset, h.ARM9Size)
	m.addFile("bin/fat.bin", h.FATOffset, h.FATSize)
	m.addFile("bin/fnt.bin", h.FNTOffset, h.FNTSize)

	var fat []nitrofs.FATEntry
	if h.FATSize != 0 {
		fatBuf, err := bytesource.ReadAt(m.src, int64(h.FATOffset), int(h.FATSize))
		if err != nil {
			return fmt.Errorf("vfs: reading fat: %w", err)
		}
		fat, err = nitrofs.ParseFAT(fatBuf)
		if err != nil {
			return fmt.Errorf("vfs: parsing fat: %w", err)
		}
	}

	if err := m.loadOverlayTable("arm7", h.ARM7OverlayOffset, h.ARM7OverlaySize, fat); err != nil {
		return err
	}
	if err := m.loadOverlayTable("arm9", h.ARM9OverlayOffset, h.ARM9OverlaySize, fat); err != nil {
		return err
	}

	if h.IconTitleOffset != 0 {
		m.addFile("bin/banner.bin", h.IconTitleOffset, bannerSize)
	}

	// A minimal cartridge can validly have no FNT/FAT at all (offset=0,
	// size=0 per the header's offset-implies-size invariant); there is then
	// no nitrofs tree to walk.
	if h.FNTSize != 0 {
		fntBuf, err := bytesource.ReadAt(m.src, int64(h.FNTOffset), int(h.FNTSize))
		if err != nil {
			return fmt.Errorf("vfs: reading fnt: %w", err)
		}
		nitro, err := nitrofs.Walk(fntBuf, fat, fntMaxDepth)
		if err != nil {
			return fmt.Errorf("vfs: walking nitrofs tree: %w", err)
		}

		m.addDir("nitrofs")
		for _, e := range nitro {
			p := path.Join("nitrofs", e.Path)
			if e.IsDir {
				m.addDir(p)
			} else {
				m.addFile(p, e.Start, e.Size())
			}
		}
	}

	sort.Strings(m.order)
	return nil
}

// loadOverlayTable indexes "bin/<prefix>_ovt.bin" plus one
// "bin/<prefix>_overlays/overlay_<id>" entry per overlay, resolved through
// fat. It mirrors NDS_load_overlay_table's "size %% 32 == 0" guard: a
// misshapen table is still exposed as a raw blob, just not expanded into
// individual overlays.
func (m *Mount) loadOverlayTable(prefix string, offset, size uint32, fat []nitrofs.FATEntry) error {
	if offset == 0 || size == 0 {
		return nil
	}

	m.addFile(fmt.Sprintf("bin/%s_ovt.bin", prefix), offset, size)
	if size%32 != 0 {
		log.Warn().Str("prefix", prefix).Uint32("size", size).Msg("overlay table size not a multiple of 32, not expanding")
		return nil
	}

	buf, err := bytesource.ReadAt(m.src, int64(offset), int(size))
	if err != nil {
		return fmt.Errorf("vfs: reading %s overlay table: %w", prefix, err)
	}
	overlays, err := nitrofs.ParseOverlayTable(buf)
	if err != nil {
		return fmt.Errorf("vfs: parsing %s overlay table: %w", prefix, err)
	}

	for _, o := range overlays {
		if o.FATFileID >= uint32(len(fat)) {
			return fmt.Errorf("vfs: %s overlay %d references fat id %d (have %d)", prefix, o.OverlayID, o.FATFileID, len(fat))
		}
		f := fat[o.FATFileID]
		m.addFile(fmt.Sprintf("bin/%s_overlays/overlay_%d", prefix, o.OverlayID), f.Start, f.Size())
	}
	return nil
}

// Stat returns the entry at p.
func (m *Mount) Stat(p string) (Entry, error) {
	e, ok := m.entries[path.Clean(p)]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return e, nil
}

// Enumerate returns every entry in the mount, sorted by path.
func (m *Mount) Enumerate() []Entry {
	out := make([]Entry, len(m.order))
	for i, p := range m.order {
		out[i] = m.entries[p]
	}
	return out
}

// List returns the direct children of directory p ("" for the root).
func (m *Mount) List(p string) []Entry {
	p = path.Clean(p)
	if p == "." {
		p = ""
	}
	var out []Entry
	for _, entryPath := range m.order {
		dir := path.Dir(entryPath)
		if dir == "." {
			dir = ""
		}
		if dir == p {
			out = append(out, m.entries[entryPath])
		}
	}
	return out
}

// Read returns up to length bytes of the file at p starting at offset,
// uninterpreted: callers that know a region holds LZSS-compressed data (e.g.
// an overlay) are expected to run it through formats/lzss themselves, the
// same way archiver_nds.cpp exposes overlays as raw FAT ranges rather than
// decompressing them. The read is satisfied directly against the underlying
// byte source, at entry.offset + offset, rather than buffering the whole
// file first.
func (m *Mount) Read(p string, offset, length int64) ([]byte, error) {
	e, err := m.Stat(p)
	if err != nil {
		return nil, err
	}
	if e.IsDir {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, p)
	}
	if offset < 0 || offset > int64(e.Size) {
		return nil, fmt.Errorf("vfs: offset %d out of range for %s (size %d)", offset, p, e.Size)
	}

	n := length
	if remaining := int64(e.Size) - offset; n > remaining {
		n = remaining
	}
	if n < 0 {
		n = 0
	}
	return bytesource.ReadAt(m.src, int64(e.Offset)+offset, int(n))
}

// Close releases the underlying Source, if it implements io.Closer.
func (m *Mount) Close() error {
	if c, ok := m.src.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
