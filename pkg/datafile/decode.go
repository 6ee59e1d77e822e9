package datafile

import (
	"encoding/binary"
	"io"
	"math"
)

// decoder reads the primitive encodings of the data file.
// The first read error sticks; later reads return zero values.
type decoder struct {
	r   io.Reader
	buf [8]byte
	err error
}

func (d *decoder) read(n int) []byte {
	b := d.buf[:n]
	if d.err != nil {
		clear(b)
		return b
	}
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.err = err
		clear(b)
	}
	return b
}

func (d *decoder) u8() byte {
	return d.read(1)[0]
}

// u16 reads a big-endian 16-bit count.
func (d *decoder) u16() int {
	return int(binary.BigEndian.Uint16(d.read(2)))
}

// u32 reads a little-endian 32-bit offset.
func (d *decoder) u32() uint32 {
	return binary.LittleEndian.Uint32(d.read(4))
}

func (d *decoder) float() float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(d.read(4)))
}

// str reads a length-prefixed string whose bytes are each stored plus one.
func (d *decoder) str() string {
	n := d.u16()
	if d.err != nil || n == 0 {
		return ""
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.err = err
		return ""
	}
	for i := range b {
		b[i]--
	}
	return string(b)
}

// strs reads a u16 count followed by that many strings.
func (d *decoder) strs() []string {
	n := d.u16()
	out := make([]string, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, d.str())
	}
	return out
}

// cstring reads bytes up to and excluding a NUL.
func (d *decoder) cstring() string {
	var b []byte
	for {
		c := d.u8()
		if d.err != nil || c == 0 {
			return string(b)
		}
		b = append(b, c)
	}
}

// encoder is the writing counterpart of decoder, used by Writer.
type encoder struct {
	b []byte
}

func (e *encoder) u8(c byte) {
	e.b = append(e.b, c)
}

func (e *encoder) u16(n int) {
	e.b = binary.BigEndian.AppendUint16(e.b, uint16(n))
}

func (e *encoder) u32(n uint32) {
	e.b = binary.LittleEndian.AppendUint32(e.b, n)
}

func (e *encoder) float(f float32) {
	e.u32(math.Float32bits(f))
}

func (e *encoder) str(s string) {
	e.u16(len(s))
	for i := 0; i < len(s); i++ {
		e.b = append(e.b, s[i]+1)
	}
}

func (e *encoder) strs(ss []string) {
	e.u16(len(ss))
	for _, s := range ss {
		e.str(s)
	}
}

// reserve appends a zero u32 and returns its offset for a later patch.
func (e *encoder) reserve() int {
	at := len(e.b)
	e.u32(0)
	return at
}

func (e *encoder) patch(at int, n uint32) {
	binary.LittleEndian.PutUint32(e.b[at:], n)
}

func (e *encoder) pos() uint32 {
	return uint32(len(e.b))
}
