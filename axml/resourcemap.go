package axml

import "github.com/go-apkedit/apkedit/bytesio"

// ResourceMap is the opaque, verbatim-preserved resource-id chunk. The
// parser never interprets its contents; regeneration copies the original
// bytes unchanged, so adding new resource-map entries is not supported.
type ResourceMap struct {
	raw []byte
}

func parseResourceMap(data []byte, offset int) (*ResourceMap, int, error) {
	magic, err := bytesio.U32(data, offset)
	if err != nil {
		return nil, 0, err
	}
	if magic != magicResourceMap {
		return nil, 0, &FormatError{Offset: offset}
	}

	chunkSize, err := bytesio.U32(data, offset+4)
	if err != nil {
		return nil, 0, err
	}

	raw, err := bytesio.Slice(data, offset, int(chunkSize))
	if err != nil {
		return nil, 0, err
	}
	out := make([]byte, len(raw))
	copy(out, raw)

	return &ResourceMap{raw: out}, offset + int(chunkSize), nil
}

// Bytes returns the chunk bytes verbatim, for regeneration.
func (r *ResourceMap) Bytes() []byte { return r.raw }
