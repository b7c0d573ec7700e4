package zipfile

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/go-apkedit/apkedit/bytesio"
)

type editEntry struct {
	origin Entry
	remove bool
	edit   []byte // nil unless edited
	edited bool
}

type appendEntry struct {
	data   []byte
	method Method
	name   string
}

// Editor accumulates a mutation plan over a parsed Archive snapshot. It does
// not mutate the Archive; Finish reads the archive's backing buffer only
// while emitting output.
type Editor struct {
	archive  *Archive
	entries  []editEntry
	appended []appendEntry
}

// NewEditor constructs an Editor against archive's current entry set.
func NewEditor(archive *Archive) *Editor {
	e := &Editor{archive: archive}
	if archive != nil {
		e.entries = make([]editEntry, len(archive.entries))
		for i, entry := range archive.entries {
			e.entries[i] = editEntry{origin: entry}
		}
	}
	return e
}

// Append queues a brand-new entry, to be emitted after all surviving source
// entries, in insertion order.
func (e *Editor) Append(name string, data []byte, method Method) {
	e.appended = append(e.appended, appendEntry{data: data, method: method, name: name})
}

// Edit replaces the payload of an existing entry. Returns false if name is
// not present in the source archive.
func (e *Editor) Edit(name string, data []byte) bool {
	idx, ok := e.archive.GetFileIndex(name)
	if !ok {
		return false
	}
	e.entries[idx].edit = data
	e.entries[idx].edited = true
	return true
}

// Remove omits the named entry from the output. Returns false if name is not
// present in the source archive; the plan is left unchanged in that case.
func (e *Editor) Remove(name string) bool {
	idx, ok := e.archive.GetFileIndex(name)
	if !ok {
		return false
	}
	e.entries[idx].remove = true
	return true
}

// fileHeaderBuilder accumulates the fields needed to emit both a local file
// header and its matching central directory record for one output entry.
type fileHeaderBuilder struct {
	name         string
	method       Method
	uncompressed uint32
	compressed   uint32
	crc32        uint32
	localExtra   []byte // nil for appended entries (and for alignment, computed fresh)
}

func (b *fileHeaderBuilder) writeLocal(w io.Writer, offset, align int) (int, error) {
	originExtraLen := len(b.localExtra)
	originLen := localFileHeaderFixed + len(b.name) + originExtraLen

	alignPad := 0
	if b.method == Stored {
		alignPad = (align - ((offset + originLen) % align)) % align
	}
	newExtraLen := originExtraLen + alignPad

	sink := bytesio.NewSink()
	sink.PutU32(magicLocalFileHeader)
	sink.PutU16(0) // version needed
	sink.PutU16(0) // flags
	sink.PutU16(uint16(b.method))
	sink.PutU32(0) // modify time
	sink.PutU32(b.crc32)
	sink.PutU32(b.compressed)
	sink.PutU32(b.uncompressed)
	sink.PutU16(uint16(len(b.name)))
	sink.PutU16(uint16(newExtraLen))
	sink.PutBytes([]byte(b.name))
	sink.PutBytes(b.localExtra)
	for i := 0; i < alignPad; i++ {
		sink.PutByte(0)
	}

	if _, err := w.Write(sink.Bytes()); err != nil {
		return 0, fmt.Errorf("zipfile: write local file header: %w", err)
	}
	return localFileHeaderFixed + len(b.name) + newExtraLen, nil
}

func (b *fileHeaderBuilder) writeCentral(w io.Writer, localHeaderOffset uint32) (int, error) {
	sink := bytesio.NewSink()
	sink.PutU32(magicCentralDirectory)
	sink.PutU16(0) // version made by
	sink.PutU16(0) // version needed
	sink.PutU16(0) // flags
	sink.PutU16(uint16(b.method))
	sink.PutU32(0) // modify time
	sink.PutU32(b.crc32)
	sink.PutU32(b.compressed)
	sink.PutU32(b.uncompressed)
	sink.PutU16(uint16(len(b.name)))
	sink.PutU16(0) // extra len
	sink.PutU16(0) // comment len
	sink.PutU16(0) // disk number start
	sink.PutU16(0) // internal attrs
	sink.PutU32(0) // external attrs
	sink.PutU32(localHeaderOffset)
	sink.PutBytes([]byte(b.name))

	if _, err := w.Write(sink.Bytes()); err != nil {
		return 0, fmt.Errorf("zipfile: write central directory record: %w", err)
	}
	return centralDirRecordFixed + len(b.name), nil
}

// Finish emits a complete ZIP archive to w: surviving source entries in
// original order (copied verbatim unless edited), then appended entries in
// insertion order, then the central directory and EOCD. Stored entries have
// their local header's extra field padded so the entry payload starts at an
// align-byte boundary; Deflated entries are never aligned.
func (e *Editor) Finish(w io.Writer, align int) error {
	var centralDirectory bytes.Buffer
	offset := 0
	fileCount := 0

	if e.archive != nil {
		for _, entry := range e.entries {
			if entry.remove {
				continue
			}
			fileCount++

			lfh, err := parseLocalFileHeader(e.archive.data, int(entry.origin.LocalHeaderOffset))
			if err != nil {
				return err
			}

			builder := &fileHeaderBuilder{
				name:         entry.origin.Name,
				method:       entry.origin.CompressMethod,
				uncompressed: entry.origin.UncompressedSize,
				compressed:   entry.origin.CompressedSize,
				crc32:        entry.origin.CRC32,
				localExtra:   lfh.extra,
			}

			localHeaderOffset := uint32(offset)

			if !entry.edited {
				n, err := builder.writeLocal(w, offset, align)
				if err != nil {
					return err
				}
				offset += n

				payload, err := bytesio.Slice(e.archive.data, lfh.dataOffset(), int(lfh.compressed))
				if err != nil {
					return err
				}
				if _, err := w.Write(payload); err != nil {
					return fmt.Errorf("zipfile: write entry payload for %q: %w", entry.origin.Name, err)
				}
				offset += len(payload)
			} else if entry.origin.CompressMethod == Stored {
				builder.uncompressed = uint32(len(entry.edit))
				builder.compressed = uint32(len(entry.edit))
				builder.crc32 = crc32.ChecksumIEEE(entry.edit)
				builder.localExtra = nil // edited entries drop the original extra field

				n, err := builder.writeLocal(w, offset, align)
				if err != nil {
					return err
				}
				offset += n

				if _, err := w.Write(entry.edit); err != nil {
					return fmt.Errorf("zipfile: write edited entry %q: %w", entry.origin.Name, err)
				}
				offset += len(entry.edit)
			} else {
				compressed, err := deflate(entry.edit)
				if err != nil {
					return fmt.Errorf("zipfile: compress edited entry %q: %w", entry.origin.Name, err)
				}

				builder.uncompressed = uint32(len(entry.edit))
				builder.compressed = uint32(len(compressed))
				builder.crc32 = crc32.ChecksumIEEE(entry.edit)
				builder.localExtra = nil // edited entries drop the original extra field

				n, err := builder.writeLocal(w, offset, align)
				if err != nil {
					return err
				}
				offset += n

				if _, err := w.Write(compressed); err != nil {
					return fmt.Errorf("zipfile: write edited entry %q: %w", entry.origin.Name, err)
				}
				offset += len(compressed)
			}

			if _, err := builder.writeCentral(&centralDirectory, localHeaderOffset); err != nil {
				return err
			}
		}
	}

	for _, appended := range e.appended {
		fileCount++

		crc := crc32.ChecksumIEEE(appended.data)
		payload := appended.data
		if appended.method == Deflated {
			compressed, err := deflate(appended.data)
			if err != nil {
				return fmt.Errorf("zipfile: compress appended entry %q: %w", appended.name, err)
			}
			payload = compressed
		}

		builder := &fileHeaderBuilder{
			name:         appended.name,
			method:       appended.method,
			uncompressed: uint32(len(appended.data)),
			compressed:   uint32(len(payload)),
			crc32:        crc,
		}

		localHeaderOffset := uint32(offset)
		n, err := builder.writeLocal(w, offset, align)
		if err != nil {
			return err
		}
		offset += n

		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("zipfile: write appended entry %q: %w", appended.name, err)
		}
		offset += len(payload)

		if _, err := builder.writeCentral(&centralDirectory, localHeaderOffset); err != nil {
			return err
		}
	}

	centralDirectoryOffset := uint32(offset)
	if _, err := w.Write(centralDirectory.Bytes()); err != nil {
		return fmt.Errorf("zipfile: write central directory: %w", err)
	}

	eocd := bytesio.NewSink()
	eocd.PutU32(magicEndOfCentralDir)
	eocd.PutU16(0) // disk number
	eocd.PutU16(0) // disk with central directory start
	eocd.PutU16(uint16(fileCount))
	eocd.PutU16(uint16(fileCount))
	eocd.PutU32(uint32(centralDirectory.Len()))
	eocd.PutU32(centralDirectoryOffset)
	eocd.PutU16(0) // comment length

	if _, err := w.Write(eocd.Bytes()); err != nil {
		return fmt.Errorf("zipfile: write end of central directory: %w", err)
	}
	return nil
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
