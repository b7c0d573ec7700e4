// Package bytesio provides bounds-checked little-endian accessors used by
// the zipfile and axml packages, plus a small growable byte sink with a
// size back-patching helper for chunks whose length isn't known up front.
package bytesio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned (wrapped with an offset/length) whenever a read
// would reach past the end of the buffer it's reading from.
var ErrOutOfBounds = errors.New("out of bounds")

// OutOfBoundsError names the offset and width of a failed bounds-checked read.
type OutOfBoundsError struct {
	Offset, Need, Len int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("out of bounds: need %d bytes at offset %d, have %d", e.Need, e.Offset, e.Len)
}

func (e *OutOfBoundsError) Unwrap() error { return ErrOutOfBounds }

func checkRange(data []byte, offset, need int) error {
	if offset < 0 || need < 0 || offset+need > len(data) {
		return &OutOfBoundsError{Offset: offset, Need: need, Len: len(data)}
	}
	return nil
}

// U16 reads a little-endian uint16 at offset.
func U16(data []byte, offset int) (uint16, error) {
	if err := checkRange(data, offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data[offset:]), nil
}

// U32 reads a little-endian uint32 at offset.
func U32(data []byte, offset int) (uint32, error) {
	if err := checkRange(data, offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data[offset:]), nil
}

// I32 reads a little-endian int32 at offset (used for chunk-type magics,
// which the wire format treats as signed 32-bit words).
func I32(data []byte, offset int) (int32, error) {
	v, err := U32(data, offset)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// Slice returns data[offset:offset+length], bounds-checked.
func Slice(data []byte, offset, length int) ([]byte, error) {
	if err := checkRange(data, offset, length); err != nil {
		return nil, err
	}
	return data[offset : offset+length], nil
}

// Sink is a growable little-endian byte buffer with a size back-patch helper,
// used by the AXML regenerator and the ZIP editor to emit chunked/variable
// length records without knowing their total size up front.
type Sink struct {
	buf []byte
}

// NewSink returns an empty Sink.
func NewSink() *Sink { return &Sink{} }

// Len returns the number of bytes written so far.
func (s *Sink) Len() int { return len(s.buf) }

// Bytes returns the accumulated buffer. The slice is owned by the Sink;
// callers must copy it before further mutation if they intend to retain it.
func (s *Sink) Bytes() []byte { return s.buf }

// PutU16 appends a little-endian uint16.
func (s *Sink) PutU16(v uint16) {
	s.buf = append(s.buf, byte(v), byte(v>>8))
}

// PutU32 appends a little-endian uint32.
func (s *Sink) PutU32(v uint32) {
	s.buf = append(s.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// PutI32 appends a little-endian int32.
func (s *Sink) PutI32(v int32) { s.PutU32(uint32(v)) }

// PutBytes appends raw bytes verbatim.
func (s *Sink) PutBytes(b []byte) { s.buf = append(s.buf, b...) }

// PutByte appends a single byte.
func (s *Sink) PutByte(b byte) { s.buf = append(s.buf, b) }

// PatchU32 overwrites the little-endian uint32 at offset with v. Used to
// back-patch a chunk's size field once the chunk's true length is known.
func (s *Sink) PatchU32(offset int, v uint32) {
	binary.LittleEndian.PutUint32(s.buf[offset:offset+4], v)
}
