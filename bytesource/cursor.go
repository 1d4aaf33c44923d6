package bytesource

import "fmt"

// Cursor is a bounds-checked little-endian reader over an in-memory buffer,
// used by the format decoders in formats/* once a region has been pulled in
// from a Source (e.g. the FAT/FNT blobs in formats/nitrofs).
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for sequential bounds-checked reads starting at 0.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Len reports the number of unread bytes remaining.
func (c *Cursor) Len() int {
	return len(c.buf) - c.pos
}

// Pos reports the current read offset within the wrapped buffer.
func (c *Cursor) Pos() int {
	return c.pos
}

// Seek moves the cursor to an absolute offset within the buffer. It fails if
// the offset is negative or past the end of the buffer.
func (c *Cursor) Seek(pos int) error {
	if pos < 0 || pos > len(c.buf) {
		return fmt.Errorf("%w: seek to %d in %d-byte buffer", ErrEndOfStream, pos, len(c.buf))
	}
	c.pos = pos
	return nil
}

// Bytes reads n raw bytes, failing with ErrEndOfStream if fewer remain.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 || n > c.Len() {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrEndOfStream, n, c.Len())
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// U8 reads one byte.
func (c *Cursor) U8() (uint8, error) {
	b, err := c.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16LE reads a little-endian uint16.
func (c *Cursor) U16LE() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

// U32LE reads a little-endian uint32.
func (c *Cursor) U32LE() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// U16LEAt and U32LEAt read fixed-width little-endian integers at an absolute
// offset in buf without disturbing a Cursor's own read position; the format
// decoders use these for random access into FNT/FAT tables where sequential
// cursoring doesn't fit the access pattern.

// U16LEAt reads a little-endian uint16 at offset off in buf.
func U16LEAt(buf []byte, off int) (uint16, error) {
	if off < 0 || off+2 > len(buf) {
		return 0, fmt.Errorf("%w: u16 at %d in %d-byte buffer", ErrEndOfStream, off, len(buf))
	}
	return uint16(buf[off]) | uint16(buf[off+1])<<8, nil
}

// U32LEAt reads a little-endian uint32 at offset off in buf.
func U32LEAt(buf []byte, off int) (uint32, error) {
	if off < 0 || off+4 > len(buf) {
		return 0, fmt.Errorf("%w: u32 at %d in %d-byte buffer", ErrEndOfStream, off, len(buf))
	}
	return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24, nil
}

// U32BEAt reads a big-endian uint32 at offset off in buf, used by the
// SNDFILE reader whose fields are stored big-endian.
func U32BEAt(buf []byte, off int) (uint32, error) {
	if off < 0 || off+4 > len(buf) {
		return 0, fmt.Errorf("%w: u32 at %d in %d-byte buffer", ErrEndOfStream, off, len(buf))
	}
	return uint32(buf[off+3]) | uint32(buf[off+2])<<8 | uint32(buf[off+1])<<16 | uint32(buf[off])<<24, nil
}
