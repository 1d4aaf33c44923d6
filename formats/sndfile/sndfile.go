// Package sndfile extracts files out of the big-endian "SNDFILE\0" archive
// format used for Metroid Prime Hunters' sound data.
package sndfile

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/icrashstuff/ndsvfs/bytesource"
)

// Magic is the 8-byte archive signature, including its trailing NUL.
var Magic = [8]byte{'S', 'N', 'D', 'F', 'I', 'L', 'E', 0}

const (
	headerSize    = 32
	fileEntrySize = 64
	nameFieldSize = 32
)

var (
	// ErrTruncated is returned when the input is too short to hold a
	// complete header or file-entry table.
	ErrTruncated = errors.New("sndfile: truncated input")
	// ErrBadMagic is returned when the 8-byte signature doesn't match.
	ErrBadMagic = errors.New("sndfile: bad magic")
	// ErrSizeMismatch is returned when the header's declared archive_size
	// doesn't match the actual input length.
	ErrSizeMismatch = errors.New("sndfile: archive_size does not match input length")
	// ErrOutOfBounds is returned when a file entry's offset/size falls
	// outside the input buffer.
	ErrOutOfBounds = errors.New("sndfile: file entry out of bounds")
)

// FileEntry describes one archived file's location, prior to extraction.
//
// Name is the raw 32-byte name field verbatim; the format doesn't guarantee
// NUL termination, so trimming is left to the caller (see TrimmedName).
type FileEntry struct {
	Name       [nameFieldSize]byte
	Offset     uint32
	SizePadded uint32
	SizeTarget uint32
}

// TrimmedName returns Name with trailing NUL bytes stripped.
func (f FileEntry) TrimmedName() string {
	return string(bytes.TrimRight(f.Name[:], "\x00"))
}

// Header is the archive's 32-byte preamble.
type Header struct {
	FileCount   uint32
	ArchiveSize uint32
}

// Archive is a parsed SNDFILE archive: the header plus every file entry's
// metadata, without yet having copied any file data out.
type Archive struct {
	Header  Header
	Entries []FileEntry
}

// Parse decodes the header and file-entry table of in. It validates the
// magic, the declared archive size against len(in), and that every entry's
// byte range lies within in, but does not copy any file data.
func Parse(in []byte) (*Archive, error) {
	if len(in) < headerSize {
		return nil, fmt.Errorf("%w: need %d bytes for header, have %d", ErrTruncated, headerSize, len(in))
	}
	if !bytes.Equal(in[0:8], Magic[:]) {
		return nil, ErrBadMagic
	}

	fileCount, err := bytesource.U32BEAt(in, 8)
	if err != nil {
		return nil, err
	}
	archiveSize, err := bytesource.U32BEAt(in, 12)
	if err != nil {
		return nil, err
	}

	tableEnd := headerSize + int(fileCount)*fileEntrySize
	if tableEnd < headerSize || len(in) <= tableEnd {
		return nil, fmt.Errorf("%w: file entry table needs %d bytes, have %d", ErrTruncated, tableEnd, len(in))
	}
	if uint32(len(in)) != archiveSize {
		return nil, fmt.Errorf("%w: header says %d, input is %d bytes", ErrSizeMismatch, archiveSize, len(in))
	}

	entries := make([]FileEntry, fileCount)
	for i := uint32(0); i < fileCount; i++ {
		off := headerSize + int(i)*fileEntrySize

		var name [nameFieldSize]byte
		copy(name[:], in[off:off+nameFieldSize])

		fileOffset, err := bytesource.U32BEAt(in, off+32)
		if err != nil {
			return nil, err
		}
		sizePadded, err := bytesource.U32BEAt(in, off+36)
		if err != nil {
			return nil, err
		}
		sizeTarget, err := bytesource.U32BEAt(in, off+40)
		if err != nil {
			return nil, err
		}

		if fileOffset > uint32(len(in)) || uint64(fileOffset)+uint64(sizeTarget) > uint64(len(in)) {
			return nil, fmt.Errorf("%w: entry %d offset=%d size=%d input=%d", ErrOutOfBounds, i, fileOffset, sizeTarget, len(in))
		}

		entries[i] = FileEntry{Name: name, Offset: fileOffset, SizePadded: sizePadded, SizeTarget: sizeTarget}
	}

	return &Archive{Header: Header{FileCount: fileCount, ArchiveSize: archiveSize}, Entries: entries}, nil
}

// ExtractedFile is one file's metadata plus its copied-out data.
type ExtractedFile struct {
	FileEntry
	Data []byte
}

// Extract parses in and copies out every file's data.
func Extract(in []byte) ([]ExtractedFile, error) {
	arc, err := Parse(in)
	if err != nil {
		return nil, err
	}
	out := make([]ExtractedFile, len(arc.Entries))
	for i, e := range arc.Entries {
		data := make([]byte, e.SizeTarget)
		copy(data, in[e.Offset:e.Offset+e.SizeTarget])
		out[i] = ExtractedFile{FileEntry: e, Data: data}
	}
	return out, nil
}
