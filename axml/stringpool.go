package axml

import (
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/go-apkedit/apkedit/bytesio"
)

const stringFlagUtf8 = 0x00000100

// StringPool is a parsed read-only view over a binary-XML string-pool
// chunk. Strings are decoded lazily and cached by index.
type StringPool struct {
	data             []byte
	chunkOffset      int
	chunkSize        int
	stringCount      int
	stringPoolOffset int
	indexTableOffset int
	isUTF8           bool
	cache            map[uint32]string
}

// parseStringPool parses the string-pool chunk starting at offset and
// returns the pool plus the offset immediately following the chunk.
func parseStringPool(data []byte, offset int) (*StringPool, int, error) {
	magic, err := bytesio.U32(data, offset)
	if err != nil {
		return nil, 0, err
	}
	if magic != magicStringPool {
		return nil, 0, &FormatError{Offset: offset}
	}

	chunkSize, err := bytesio.U32(data, offset+4)
	if err != nil {
		return nil, 0, err
	}
	stringCount, err := bytesio.U32(data, offset+8)
	if err != nil {
		return nil, 0, err
	}
	// styleCount at offset+12 (ignored), flags at offset+16
	flags, err := bytesio.U32(data, offset+16)
	if err != nil {
		return nil, 0, err
	}
	stringPoolOffset, err := bytesio.U32(data, offset+20)
	if err != nil {
		return nil, 0, err
	}
	// stylePoolOffset at offset+24 (ignored)

	if flags&stringFlagUtf8 != 0 {
		return nil, 0, &FormatError{Offset: offset}
	}

	pool := &StringPool{
		data:             data,
		chunkOffset:      offset,
		chunkSize:        int(chunkSize),
		stringCount:      int(stringCount),
		stringPoolOffset: int(stringPoolOffset),
		indexTableOffset: offset + 7*4,
		isUTF8:           false,
		cache:            make(map[uint32]string, stringCount),
	}

	return pool, offset + int(chunkSize), nil
}

// Count returns the number of strings in the pool.
func (p *StringPool) Count() int { return p.stringCount }

// Get decodes and returns the string at index i.
func (p *StringPool) Get(i uint32) (string, error) {
	if i == noString {
		return "", nil
	}
	if int(i) >= p.stringCount {
		return "", fmt.Errorf("axml: string index %d out of range (count %d)", i, p.stringCount)
	}
	if s, ok := p.cache[i]; ok {
		return s, nil
	}

	indexOffset := p.indexTableOffset + 4*int(i)
	relOffset, err := bytesio.U32(p.data, indexOffset)
	if err != nil {
		return "", err
	}

	strOffset := p.chunkOffset + p.stringPoolOffset + int(relOffset)
	strLen, err := bytesio.U16(p.data, strOffset)
	if err != nil {
		return "", err
	}

	units := make([]uint16, strLen)
	for j := 0; j < int(strLen); j++ {
		u, err := bytesio.U16(p.data, strOffset+2+2*j)
		if err != nil {
			return "", err
		}
		units[j] = u
	}

	decoded := utf16.Decode(units)
	s := string(decoded)
	if !utf8.ValidString(s) || strings.ContainsRune(s, 0) {
		s = strings.Map(func(r rune) rune {
			if r == 0 || r == utf8.RuneError {
				return '￾'
			}
			return r
		}, s)
	}

	p.cache[i] = s
	return s, nil
}

// Builder interns strings for regeneration: Put is idempotent per string and
// returns a stable index for the life of the builder.
type Builder struct {
	index map[string]uint32
	order []string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]uint32)}
}

// NewBuilderFromPool seeds a Builder from an existing parsed StringPool, in
// order, so unedited documents regenerate with stable indices.
func NewBuilderFromPool(pool *StringPool) (*Builder, error) {
	b := NewBuilder()
	for i := 0; i < pool.Count(); i++ {
		s, err := pool.Get(uint32(i))
		if err != nil {
			return nil, err
		}
		b.Put(s)
	}
	return b, nil
}

// Put interns value, returning its (stable, idempotent) index.
func (b *Builder) Put(value string) uint32 {
	if idx, ok := b.index[value]; ok {
		return idx
	}
	idx := uint32(len(b.order))
	b.index[value] = idx
	b.order = append(b.order, value)
	return idx
}

// PutOptional interns value if present, else returns the "no string"
// sentinel. Used for attribute fields that may legitimately be absent.
func (b *Builder) PutOptional(value *string) uint32 {
	if value == nil {
		return noString
	}
	return b.Put(*value)
}

// Bytes regenerates the string-pool chunk bytes for the interned strings.
func (b *Builder) Bytes() []byte {
	sink := bytesio.NewSink()
	sink.PutI32(magicStringPool)
	sizeOffset := sink.Len()
	sink.PutU32(0) // size placeholder, patched below
	sink.PutU32(uint32(len(b.order)))
	sink.PutU32(0) // style count
	sink.PutU32(0) // flags
	sink.PutU32(uint32(7*4 + len(b.order)*4))
	sink.PutU32(0) // style pool offset

	var strOffset uint32
	for _, s := range b.order {
		sink.PutU32(strOffset)
		strOffset += uint32(2 + len(utf16.Encode([]rune(s)))*2 + 2)
	}

	for _, s := range b.order {
		units := utf16.Encode([]rune(s))
		sink.PutU16(uint16(len(units)))
		for _, u := range units {
			sink.PutU16(u)
		}
		sink.PutU16(0) // terminator
	}

	for sink.Len()%4 != 0 {
		sink.PutByte(0)
	}

	sink.PatchU32(sizeOffset, uint32(sink.Len()))
	return sink.Bytes()
}
