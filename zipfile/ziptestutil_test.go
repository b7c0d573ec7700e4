package zipfile

import (
	"bytes"
	"hash/crc32"

	"github.com/klauspost/compress/flate"

	"github.com/go-apkedit/apkedit/bytesio"
)

// testEntry describes one file to embed in a hand-built test ZIP.
type testEntry struct {
	name   string
	data   []byte
	method Method
}

// buildZip writes a minimal, well-formed ZIP archive containing entries, in
// order, followed by a central directory and an EOCD record with commentLen
// bytes of trailing comment. It mirrors the exact byte layout archive.go
// parses, so it doubles as a specification of that layout for tests.
func buildZip(entries []testEntry, commentLen int) []byte {
	var localOffsets []int
	out := bytesio.NewSink()

	for _, e := range entries {
		localOffsets = append(localOffsets, out.Len())

		payload := e.data
		if e.method == Deflated {
			payload = mustDeflate(e.data)
		}
		crc := crc32.ChecksumIEEE(e.data)

		out.PutU32(magicLocalFileHeader)
		out.PutU16(0) // version needed
		out.PutU16(0) // flags
		out.PutU16(uint16(e.method))
		out.PutU32(0) // modify time
		out.PutU32(crc)
		out.PutU32(uint32(len(payload)))
		out.PutU32(uint32(len(e.data)))
		out.PutU16(uint16(len(e.name)))
		out.PutU16(0) // extra len
		out.PutBytes([]byte(e.name))
		out.PutBytes(payload)
	}

	cdStart := out.Len()
	for i, e := range entries {
		payload := e.data
		if e.method == Deflated {
			payload = mustDeflate(e.data)
		}
		crc := crc32.ChecksumIEEE(e.data)

		out.PutU32(magicCentralDirectory)
		out.PutU16(0) // version made by
		out.PutU16(0) // version needed
		out.PutU16(0) // flags
		out.PutU16(uint16(e.method))
		out.PutU32(0) // modify time
		out.PutU32(crc)
		out.PutU32(uint32(len(payload)))
		out.PutU32(uint32(len(e.data)))
		out.PutU16(uint16(len(e.name)))
		out.PutU16(0) // extra len
		out.PutU16(0) // comment len
		out.PutU16(0) // disk number start
		out.PutU16(0) // internal attrs
		out.PutU32(0) // external attrs
		out.PutU32(uint32(localOffsets[i]))
		out.PutBytes([]byte(e.name))
	}
	cdSize := out.Len() - cdStart

	out.PutU32(magicEndOfCentralDir)
	out.PutU16(0) // disk number
	out.PutU16(0) // disk with central directory start
	out.PutU16(uint16(len(entries)))
	out.PutU16(uint16(len(entries)))
	out.PutU32(uint32(cdSize))
	out.PutU32(uint32(cdStart))
	out.PutU16(uint16(commentLen))
	for i := 0; i < commentLen; i++ {
		out.PutByte('x')
	}

	return out.Bytes()
}

func mustDeflate(data []byte) []byte {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		panic(err)
	}
	if _, err := fw.Write(data); err != nil {
		panic(err)
	}
	if err := fw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
