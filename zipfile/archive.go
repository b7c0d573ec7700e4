package zipfile

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"

	"github.com/go-apkedit/apkedit/bytesio"
)

const (
	magicLocalFileHeader  = 0x04034b50
	magicCentralDirectory = 0x02014b50
	magicEndOfCentralDir  = 0x06054b50
	eocdFixedSize         = 22
	eocdScanWindow        = 65535 + eocdFixedSize
	centralDirRecordFixed = 46
	localFileHeaderFixed  = 30
	zip64Sentinel32       = 0xFFFFFFFF
)

// Archive is a read-only, zero-copy view over a parsed ZIP container. It
// borrows the input buffer for its entire lifetime.
type Archive struct {
	data                   []byte
	centralDirectoryOffset uint32
	entries                []Entry
	nameIndex              map[string]int
}

// Parse locates the end-of-central-directory record, walks the central
// directory, and builds an Archive view over data. data is retained (not
// copied) for the lifetime of the returned Archive.
func Parse(data []byte) (*Archive, error) {
	eocdOffset, err := findEOCD(data)
	if err != nil {
		return nil, err
	}

	cdOffset, err := bytesio.U32(data, eocdOffset+16)
	if err != nil {
		return nil, err
	}
	entryCount, err := bytesio.U16(data, eocdOffset+10)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		data:                   data,
		centralDirectoryOffset: cdOffset,
		nameIndex:              make(map[string]int, entryCount),
	}

	offset := int(cdOffset)
	for i := 0; i < int(entryCount); i++ {
		magic, err := bytesio.U32(data, offset)
		if err != nil {
			return nil, err
		}
		if magic != magicCentralDirectory {
			return nil, &FormatError{Offset: offset, Reason: ReasonBadCentralDirectoryMagic}
		}

		methodRaw, err := bytesio.U16(data, offset+10)
		if err != nil {
			return nil, err
		}
		method, ok := methodFromU16(methodRaw)
		if !ok {
			return nil, &FormatError{Offset: offset, Reason: ReasonUnknownCompressMethod}
		}

		flags, err := bytesio.U16(data, offset+8)
		if err != nil {
			return nil, err
		}
		if flags&0x0008 != 0 {
			return nil, &FormatError{Offset: offset, Reason: "data descriptor entries are not supported"}
		}

		crc32, _ := bytesio.U32(data, offset+16)
		compressedSize, _ := bytesio.U32(data, offset+20)
		uncompressedSize, _ := bytesio.U32(data, offset+24)
		nameLen, err := bytesio.U16(data, offset+28)
		if err != nil {
			return nil, err
		}
		extraLen, err := bytesio.U16(data, offset+30)
		if err != nil {
			return nil, err
		}
		commentLen, err := bytesio.U16(data, offset+32)
		if err != nil {
			return nil, err
		}
		localHeaderOffset, err := bytesio.U32(data, offset+42)
		if err != nil {
			return nil, err
		}

		if localHeaderOffset == zip64Sentinel32 || compressedSize == zip64Sentinel32 || uncompressedSize == zip64Sentinel32 {
			return nil, &FormatError{Offset: offset, Reason: ReasonZip64Unsupported}
		}

		nameBytes, err := bytesio.Slice(data, offset+centralDirRecordFixed, int(nameLen))
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(nameBytes) {
			return nil, &FormatError{Offset: offset, Reason: ReasonBadFileName}
		}
		name := string(nameBytes)

		entry := Entry{
			Name:              name,
			CompressMethod:    method,
			CRC32:             crc32,
			CompressedSize:    compressedSize,
			UncompressedSize:  uncompressedSize,
			LocalHeaderOffset: localHeaderOffset,
			CentralDirOffset:  uint32(offset),
			EntrySizeInCD:     uint32(centralDirRecordFixed) + uint32(nameLen) + uint32(extraLen) + uint32(commentLen),
			ExtraLen:          extraLen,
		}

		a.nameIndex[name] = len(a.entries) // last-wins
		a.entries = append(a.entries, entry)

		offset += int(entry.EntrySizeInCD)
	}

	return a, nil
}

// findEOCD scans backwards from len(data)-22, capped at the comment-length
// limit, looking for the EOCD magic.
func findEOCD(data []byte) (int, error) {
	if len(data) < eocdFixedSize {
		return 0, &FormatError{Offset: 0, Reason: ReasonEOCDNotFound}
	}

	start := len(data) - eocdFixedSize
	minOffset := start - eocdScanWindow
	if minOffset < 0 {
		minOffset = 0
	}

	for offset := start; offset >= minOffset; offset-- {
		magic, err := bytesio.U32(data, offset)
		if err != nil {
			continue
		}
		if magic == magicEndOfCentralDir {
			return offset, nil
		}
	}

	return 0, &FormatError{Offset: minOffset, Reason: ReasonEOCDNotFound}
}

// FileCount returns the number of entries in the archive.
func (a *Archive) FileCount() int { return len(a.entries) }

// GetEntry returns the entry at index i, or false if i is out of range.
func (a *Archive) GetEntry(i int) (Entry, bool) {
	if i < 0 || i >= len(a.entries) {
		return Entry{}, false
	}
	return a.entries[i], true
}

// GetFile looks up an entry by name.
func (a *Archive) GetFile(name string) (Entry, bool) {
	idx, ok := a.nameIndex[name]
	if !ok {
		return Entry{}, false
	}
	return a.entries[idx], true
}

// GetFileIndex returns the index of the entry named name, if any.
func (a *Archive) GetFileIndex(name string) (int, bool) {
	idx, ok := a.nameIndex[name]
	return idx, ok
}

// GetCompressedBytes returns the raw (possibly compressed) payload bytes for
// the entry at index i, re-reading the local file header's name/extra
// lengths since they may legitimately differ from the central directory's.
func (a *Archive) GetCompressedBytes(i int) ([]byte, error) {
	entry, ok := a.GetEntry(i)
	if !ok {
		return nil, fmt.Errorf("zipfile: entry index %d out of range", i)
	}

	lfh, err := parseLocalFileHeader(a.data, int(entry.LocalHeaderOffset))
	if err != nil {
		return nil, err
	}

	return bytesio.Slice(a.data, lfh.dataOffset(), int(entry.CompressedSize))
}

// GetUncompressedBytes returns the decoded payload for the named entry:
// the stored bytes verbatim for Stored, or the result of inflating for
// Deflated. Decompression failures are returned as a plain I/O error.
func (a *Archive) GetUncompressedBytes(name string) ([]byte, error) {
	idx, ok := a.GetFileIndex(name)
	if !ok {
		return nil, fmt.Errorf("zipfile: no such entry %q", name)
	}
	entry := a.entries[idx]

	raw, err := a.GetCompressedBytes(idx)
	if err != nil {
		return nil, err
	}

	switch entry.CompressMethod {
	case Stored:
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	case Deflated:
		return inflate(raw)
	default:
		return nil, &FormatError{Offset: int(entry.LocalHeaderOffset), Reason: ReasonUnknownCompressMethod}
	}
}

var flateReaderPool sync.Pool

func inflate(raw []byte) ([]byte, error) {
	rc, ok := flateReaderPool.Get().(io.ReadCloser)
	if ok {
		rc.(flate.Resetter).Reset(bytes.NewReader(raw), nil)
	} else {
		rc = flate.NewReader(bytes.NewReader(raw))
	}
	defer flateReaderPool.Put(rc)

	out, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("zipfile: inflate failed: %w", err)
	}
	return out, nil
}

// localFileHeader is the parsed fixed+variable portion of a local file
// header, used both when reading an existing entry's payload and when
// copying an unedited entry's header verbatim during Editor.Finish.
type localFileHeader struct {
	globalOffset int
	nameLen      uint16
	extraLen     uint16
	name         string
	extra        []byte
	compressed   uint32
}

func parseLocalFileHeader(data []byte, offset int) (*localFileHeader, error) {
	magic, err := bytesio.U32(data, offset)
	if err != nil {
		return nil, err
	}
	if magic != magicLocalFileHeader {
		return nil, &FormatError{Offset: offset, Reason: ReasonBadLocalHeaderMagic}
	}

	compressedSize, err := bytesio.U32(data, offset+18)
	if err != nil {
		return nil, err
	}
	nameLen, err := bytesio.U16(data, offset+26)
	if err != nil {
		return nil, err
	}
	extraLen, err := bytesio.U16(data, offset+28)
	if err != nil {
		return nil, err
	}
	nameBytes, err := bytesio.Slice(data, offset+localFileHeaderFixed, int(nameLen))
	if err != nil {
		return nil, err
	}
	extra, err := bytesio.Slice(data, offset+localFileHeaderFixed+int(nameLen), int(extraLen))
	if err != nil {
		return nil, err
	}

	return &localFileHeader{
		globalOffset: offset,
		nameLen:      nameLen,
		extraLen:     extraLen,
		name:         string(nameBytes),
		extra:        extra,
		compressed:   compressedSize,
	}, nil
}

func (h *localFileHeader) dataOffset() int {
	return h.globalOffset + localFileHeaderFixed + int(h.nameLen) + int(h.extraLen)
}
