// Package serial implements the fixed-endian binary codec used to persist
// every node kind. Records are framed as <version uint16><size uint32><payload>
// so that newer versions can append fields a compiled-in older reader simply
// never reads, and so the storage engine can learn a record's length without
// decoding its payload.
package serial

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/errs"
)

// Error is the error class for the serial package.
var Error = errs.Class("serial")

// ErrShortBuffer is returned by Unpack when buf is shorter than the size
// the header predicts. Callers should retry with a larger buffer.
var ErrShortBuffer = Error.New("buffer shorter than predicted size")

// ErrUnsupportedVersion is returned when a record's version tag is newer
// than this build understands how to decode.
var ErrUnsupportedVersion = Error.New("unsupported record version")

// HeaderSize is the width of the node header: a version tag plus a payload size.
const HeaderSize = 2 + 4

// Writer accumulates packed fields into a growable byte buffer.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with buf as its initial backing array, reusable
// across Pack calls to avoid allocating a new buffer per node.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf[:0]}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// PutUint8 appends a single byte.
func (w *Writer) PutUint8(v uint8) { w.buf = append(w.buf, v) }

// PutBool appends a boolean as one byte.
func (w *Writer) PutBool(v bool) {
	if v {
		w.PutUint8(1)
	} else {
		w.PutUint8(0)
	}
}

// PutUint16 appends a little-endian uint16.
func (w *Writer) PutUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutUint32 appends a little-endian uint32.
func (w *Writer) PutUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutUint64 appends a little-endian uint64.
func (w *Writer) PutUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutFloat64 appends an IEEE-754 double, bit-cast through uint64.
func (w *Writer) PutFloat64(v float64) { w.PutUint64(math.Float64bits(v)) }

// PutString appends a 4-byte length prefix followed by the raw bytes of s.
// Strings are not NUL-terminated.
func (w *Writer) PutString(s string) {
	w.PutUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// PutHeader writes the node header (version, payload size) followed by an
// as-yet-unwritten payload; callers write the header after the payload is
// assembled, so PackRecord below is the normal entry point.
func (w *Writer) putHeader(version uint16, payloadSize uint32) {
	w.PutUint16(version)
	w.PutUint32(payloadSize)
}

// PackRecord writes a full node header plus payload: version, then payload
// size, then the payload bytes produced by pack.
func PackRecord(version uint16, pack func(w *Writer)) []byte {
	body := NewWriter(make([]byte, 0, 64))
	pack(body)
	out := NewWriter(make([]byte, 0, HeaderSize+body.Len()))
	out.putHeader(version, uint32(body.Len()))
	out.buf = append(out.buf, body.buf...)
	return out.Bytes()
}

// Reader decodes fields sequentially from a byte slice without copying.
type Reader struct {
	buf []byte
	off int
}

// NewReader wraps buf for sequential decoding.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Off returns the current read offset.
func (r *Reader) Off() int { return r.off }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return ErrShortBuffer
	}
	return nil
}

// Uint8 reads one byte.
func (r *Reader) Uint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

// Bool reads one byte as a boolean.
func (r *Reader) Bool() (bool, error) {
	v, err := r.Uint8()
	return v != 0, err
}

// Uint16 reads a little-endian uint16.
func (r *Reader) Uint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// Uint64 reads a little-endian uint64.
func (r *Reader) Uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

// Float64 reads an IEEE-754 double bit-cast through uint64.
func (r *Reader) Float64() (float64, error) {
	v, err := r.Uint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// String reads a 4-byte length prefix followed by that many raw bytes.
func (r *Reader) String() (string, error) {
	n, err := r.Uint32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

// Header reads the node header without consuming the payload, returning the
// version tag and the payload size it declares.
func Header(buf []byte) (version uint16, payloadSize uint32, err error) {
	if len(buf) < HeaderSize {
		return 0, 0, ErrShortBuffer
	}
	version = binary.LittleEndian.Uint16(buf[0:2])
	payloadSize = binary.LittleEndian.Uint32(buf[2:6])
	return version, payloadSize, nil
}

// SizeOfEncoded returns the total size (header + payload) a record occupies
// at the front of buf, without decoding any payload field. Callers retry
// with a bigger slice if it returns ErrShortBuffer.
func SizeOfEncoded(buf []byte) (int, error) {
	_, payloadSize, err := Header(buf)
	if err != nil {
		return 0, err
	}
	total := HeaderSize + int(payloadSize)
	if len(buf) < total {
		return 0, ErrShortBuffer
	}
	return total, nil
}

// Payload returns the payload slice of a framed record (the bytes after the
// header), and a Reader positioned at its start.
func Payload(buf []byte) (*Reader, uint16, error) {
	version, payloadSize, err := Header(buf)
	if err != nil {
		return nil, 0, err
	}
	total := HeaderSize + int(payloadSize)
	if len(buf) < total {
		return nil, 0, ErrShortBuffer
	}
	return NewReader(buf[HeaderSize:total]), version, nil
}

// FieldOffset returns a sub-slice of a framed record's payload starting at
// byteOffset, without decoding preceding fields. Used by the storage engine
// to extract secondary-index key material (e.g. the hits counter) from a raw
// stored record without a full Unpack.
func FieldOffset(buf []byte, byteOffset int) ([]byte, error) {
	r, _, err := Payload(buf)
	if err != nil {
		return nil, err
	}
	if byteOffset > len(r.buf) {
		return nil, ErrShortBuffer
	}
	return r.buf[byteOffset:], nil
}

// CompareUint64Field compares the little-endian uint64 found at the same
// byteOffset in two framed records' payloads, for use as a secondary-index
// ordering function.
func CompareUint64Field(a, b []byte, byteOffset int) (int, error) {
	fa, err := FieldOffset(a, byteOffset)
	if err != nil {
		return 0, err
	}
	fb, err := FieldOffset(b, byteOffset)
	if err != nil {
		return 0, err
	}
	if err := checkLen(fa, 8); err != nil {
		return 0, err
	}
	if err := checkLen(fb, 8); err != nil {
		return 0, err
	}
	va := binary.LittleEndian.Uint64(fa[:8])
	vb := binary.LittleEndian.Uint64(fb[:8])
	switch {
	case va < vb:
		return -1, nil
	case va > vb:
		return 1, nil
	default:
		return 0, nil
	}
}

// CompareStringField compares the length-prefixed string found at the same
// byteOffset in two framed records' payloads, byte-lexicographically.
func CompareStringField(a, b []byte, byteOffset int) (int, error) {
	fa, err := FieldOffset(a, byteOffset)
	if err != nil {
		return 0, err
	}
	fb, err := FieldOffset(b, byteOffset)
	if err != nil {
		return 0, err
	}
	sa, err := NewReader(fa).String()
	if err != nil {
		return 0, err
	}
	sb, err := NewReader(fb).String()
	if err != nil {
		return 0, err
	}
	switch {
	case sa < sb:
		return -1, nil
	case sa > sb:
		return 1, nil
	default:
		return 0, nil
	}
}

func checkLen(buf []byte, n int) error {
	if len(buf) < n {
		return ErrShortBuffer
	}
	return nil
}
