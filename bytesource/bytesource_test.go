package bytesource_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/icrashstuff/ndsvfs/bytesource"
)

func TestReadAt(t *testing.T) {
	t.Parallel()
	src := bytesource.FromReaderAt(bytes.NewReader([]byte{0, 1, 2, 3, 4, 5, 6, 7}))

	got, err := bytesource.ReadAt(src, 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, []byte{2, 3, 4}) {
		t.Errorf("got %v, want [2 3 4]", got)
	}
}

func TestReadAtPastEnd(t *testing.T) {
	t.Parallel()
	src := bytesource.FromReaderAt(bytes.NewReader([]byte{0, 1, 2}))

	if _, err := bytesource.ReadAt(src, 1, 10); err != bytesource.ErrEndOfStream {
		t.Errorf("expected ErrEndOfStream, got %v", err)
	}
}

func TestSeekNegative(t *testing.T) {
	t.Parallel()
	src := bytesource.FromReaderAt(bytes.NewReader([]byte{0, 1, 2}))
	if err := src.Seek(-1); err != bytesource.ErrEndOfStream {
		t.Errorf("expected ErrEndOfStream, got %v", err)
	}
}

func TestCursorBasics(t *testing.T) {
	t.Parallel()
	c := bytesource.NewCursor([]byte{0x10, 0x20, 0x40, 0x01, 0x00})

	b, err := c.U8()
	if err != nil || b != 0x10 {
		t.Fatalf("U8: got (%v, %v)", b, err)
	}
	u16, err := c.U16LE()
	if err != nil || u16 != 0x4020 {
		t.Fatalf("U16LE: got (0x%x, %v)", u16, err)
	}
	u16b, err := c.U16LE()
	if err != nil || u16b != 1 {
		t.Fatalf("U16LE#2: got (0x%x, %v)", u16b, err)
	}
	if c.Len() != 0 {
		t.Errorf("expected 0 bytes left, got %d", c.Len())
	}
	if _, err := c.U8(); !errors.Is(err, bytesource.ErrEndOfStream) {
		t.Errorf("expected ErrEndOfStream at end, got %v", err)
	}
}

func TestU32LEAtAndU32BEAt(t *testing.T) {
	t.Parallel()
	buf := []byte{0x01, 0x02, 0x03, 0x04}
	le, err := bytesource.U32LEAt(buf, 0)
	if err != nil || le != 0x04030201 {
		t.Errorf("U32LEAt: got (0x%x, %v)", le, err)
	}
	be, err := bytesource.U32BEAt(buf, 0)
	if err != nil || be != 0x01020304 {
		t.Errorf("U32BEAt: got (0x%x, %v)", be, err)
	}
	if _, err := bytesource.U32LEAt(buf, 2); !errors.Is(err, bytesource.ErrEndOfStream) {
		t.Errorf("expected ErrEndOfStream, got %v", err)
	}
}

func TestCRC16ARC(t *testing.T) {
	t.Parallel()
	cases := []struct {
		desc  string
		input []byte
		want  uint16
	}{
		{"empty", []byte{}, 0xFFFF},
		{"single zero byte", []byte{0x00}, 0x40BF},
		{"ascii 123456789", []byte("123456789"), 0xBB3D},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			got := bytesource.CRC16ARC(tc.input)
			if got != tc.want {
				t.Errorf("CRC16ARC(%q) = 0x%04X, want 0x%04X", tc.input, got, tc.want)
			}
		})
	}
}
