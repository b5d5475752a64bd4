package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ArgReader decodes method arguments. The first error is sticky: every later
// read is a no-op and Err reports it.
//
// Consecutive Bit calls share one octet, least significant bit first. Any
// other read starts a fresh octet.
type ArgReader struct {
	buf   *bytes.Reader
	err   error
	bits  byte
	nbits uint
}

// NewArgReader creates an ArgReader over a method's argument bytes
func NewArgReader(data []byte) *ArgReader {
	return &ArgReader{buf: bytes.NewReader(data)}
}

// Err returns the first error encountered, wrapped as a malformed-arguments error
func (r *ArgReader) Err() error {
	if r.err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrMalformed, r.err)
}

func (r *ArgReader) read(v interface{}) {
	r.nbits = 0
	if r.err != nil {
		return
	}
	r.err = binary.Read(r.buf, binary.BigEndian, v)
}

// Octet reads a uint8
func (r *ArgReader) Octet() uint8 {
	var v uint8
	r.read(&v)
	return v
}

// Short reads a uint16
func (r *ArgReader) Short() uint16 {
	var v uint16
	r.read(&v)
	return v
}

// Long reads a uint32
func (r *ArgReader) Long() uint32 {
	var v uint32
	r.read(&v)
	return v
}

// LongLong reads a uint64
func (r *ArgReader) LongLong() uint64 {
	var v uint64
	r.read(&v)
	return v
}

// Bit reads the next packed boolean
func (r *ArgReader) Bit() bool {
	if r.err != nil {
		return false
	}
	if r.nbits == 0 || r.nbits == 8 {
		b, err := r.buf.ReadByte()
		if err != nil {
			r.err = err
			return false
		}
		r.bits = b
		r.nbits = 0
	}
	v := r.bits&(1<<r.nbits) != 0
	r.nbits++
	return v
}

// ShortStr reads a short string
func (r *ArgReader) ShortStr() string {
	r.nbits = 0
	if r.err != nil {
		return ""
	}
	s, err := ReadShortString(r.buf)
	r.err = err
	return s
}

// LongStr reads a long string
func (r *ArgReader) LongStr() string {
	r.nbits = 0
	if r.err != nil {
		return ""
	}
	s, err := ReadLongString(r.buf)
	r.err = err
	return string(s)
}

// Table reads a field table
func (r *ArgReader) Table() Table {
	r.nbits = 0
	if r.err != nil {
		return nil
	}
	t, err := ReadTable(r.buf)
	r.err = err
	return t
}

// ArgWriter encodes method arguments with the same bit packing as ArgReader.
type ArgWriter struct {
	buf   bytes.Buffer
	err   error
	bits  byte
	nbits uint
}

// NewArgWriter creates an empty ArgWriter
func NewArgWriter() *ArgWriter {
	return &ArgWriter{}
}

// Err returns the first error encountered
func (w *ArgWriter) Err() error {
	return w.err
}

// flushBits writes any pending packed bits
func (w *ArgWriter) flushBits() {
	if w.nbits > 0 {
		w.buf.WriteByte(w.bits)
		w.bits = 0
		w.nbits = 0
	}
}

func (w *ArgWriter) write(v interface{}) {
	w.flushBits()
	if w.err != nil {
		return
	}
	w.err = binary.Write(&w.buf, binary.BigEndian, v)
}

// Octet writes a uint8
func (w *ArgWriter) Octet(v uint8) { w.write(v) }

// Short writes a uint16
func (w *ArgWriter) Short(v uint16) { w.write(v) }

// Long writes a uint32
func (w *ArgWriter) Long(v uint32) { w.write(v) }

// LongLong writes a uint64
func (w *ArgWriter) LongLong(v uint64) { w.write(v) }

// Bit appends a packed boolean
func (w *ArgWriter) Bit(v bool) {
	if w.nbits == 8 {
		w.flushBits()
	}
	if v {
		w.bits |= 1 << w.nbits
	}
	w.nbits++
}

// ShortStr writes a short string
func (w *ArgWriter) ShortStr(s string) {
	w.flushBits()
	if w.err != nil {
		return
	}
	w.err = WriteShortString(&w.buf, s)
}

// LongStr writes a long string
func (w *ArgWriter) LongStr(s string) {
	w.flushBits()
	if w.err != nil {
		return
	}
	w.err = WriteLongString(&w.buf, []byte(s))
}

// Table writes a field table
func (w *ArgWriter) Table(t Table) {
	w.flushBits()
	if w.err != nil {
		return
	}
	w.err = WriteTable(&w.buf, t)
}

// Bytes flushes pending bits and returns the encoded arguments
func (w *ArgWriter) Bytes() []byte {
	w.flushBits()
	return w.buf.Bytes()
}

