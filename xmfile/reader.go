package xmfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// reader walks over the XM data bytes.
//
// All read methods panic with a *ParseError when there is not
// enough data left; the parser recovers that panic in one place.
type reader struct {
	data []byte
	pos  int

	// The location labels for the error messages,
	// like "instrument[3].sample[0]".
	section      string
	sectionIndex int
	item         string
	itemIndex    int
}

func (r *reader) reset(data []byte) {
	*r = reader{data: data}
	r.enter("")
}

func (r *reader) enter(section string) {
	r.section = section
	r.sectionIndex = -1
	r.item = ""
	r.itemIndex = -1
}

func (r *reader) enterItem(item string) {
	r.item = item
	r.itemIndex = -1
}

func (r *reader) location() string {
	var b strings.Builder
	b.WriteString(r.section)
	if r.sectionIndex >= 0 {
		fmt.Fprintf(&b, "[%d]", r.sectionIndex)
	}
	if r.item != "" {
		b.WriteByte('.')
		b.WriteString(r.item)
		if r.itemIndex >= 0 {
			fmt.Fprintf(&b, "[%d]", r.itemIndex)
		}
	}
	return b.String()
}

func (r *reader) errorf(format string, args ...any) *ParseError {
	return &ParseError{
		Location: r.location(),
		Message:  fmt.Sprintf(format, args...),
		Offset:   r.pos,
	}
}

func (r *reader) remaining() int { return len(r.data) - r.pos }

func (r *reader) need(n int, what string) {
	if n < 0 || r.remaining() < n {
		panic(r.errorf("unexpected EOF while reading %s", what))
	}
}

// seek moves to the absolute offset; it's used to honor the
// section sizes stored in the headers.
func (r *reader) seek(pos int) {
	if pos > len(r.data) {
		panic(r.errorf("section end %d is out of the data bounds", pos))
	}
	r.pos = pos
}

func (r *reader) skip(n int, what string) {
	r.need(n, what)
	r.pos += n
}

func (r *reader) bytes(n int, what string) []byte {
	r.need(n, what)
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

// tail returns up to n bytes, never failing on the EOF.
func (r *reader) tail(n int) []byte {
	if n > r.remaining() {
		n = r.remaining()
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

// cstring reads a fixed-size zero-padded string.
func (r *reader) cstring(n int, what string) string {
	b := r.bytes(n, what)
	if i := bytes.IndexByte(b, 0); i != -1 {
		b = b[:i]
	}
	return string(b)
}

func (r *reader) u32(what string) uint32 {
	return binary.LittleEndian.Uint32(r.bytes(4, what))
}

func (r *reader) u16(what string) uint16 {
	return binary.LittleEndian.Uint16(r.bytes(2, what))
}

func (r *reader) u8(what string) uint8 {
	r.need(1, what)
	b := r.data[r.pos]
	r.pos++
	return b
}

func (r *reader) i8(what string) int8 {
	return int8(r.u8(what))
}
