// Package axml parses and regenerates Android's compiled binary XML wire
// format (string pool + resource map + namespace + element tree), as used
// for AndroidManifest.xml inside an APK.
package axml

import (
	"github.com/go-apkedit/apkedit/bytesio"
)

// Namespace is the single prefix/uri pair opened at document scope.
type Namespace struct {
	Prefix string
	URI    string
}

// AXML is a parsed binary-XML document.
type AXML struct {
	Namespace Namespace
	Root      Element

	pool        *StringPool
	resourceMap *ResourceMap
}

const headerFixedSize = 8 // magic + file_length

// Parse parses a binary-XML byte stream per the strict chunk order: magic,
// file_length, string pool, resource map, one start-namespace, exactly one
// root element subtree, one matching end-namespace.
func Parse(data []byte) (*AXML, error) {
	magic, err := bytesio.I32(data, 0)
	if err != nil {
		return nil, err
	}
	if magic != magicXML {
		return nil, &FormatError{Offset: 0}
	}

	fileLength, err := bytesio.U32(data, 4)
	if err != nil {
		return nil, err
	}
	if int(fileLength) != len(data) {
		return nil, &FormatError{Offset: 4}
	}

	offset := headerFixedSize

	pool, offset, err := parseStringPool(data, offset)
	if err != nil {
		return nil, err
	}

	resourceMap, offset, err := parseResourceMap(data, offset)
	if err != nil {
		return nil, err
	}

	ns, offset, err := parseNamespaceStart(data, pool, offset)
	if err != nil {
		return nil, err
	}

	root, err := parseElement(data, pool, &offset)
	if err != nil {
		return nil, err
	}

	if err := validateNamespaceEnd(data, pool, ns, offset); err != nil {
		return nil, err
	}

	doc := &AXML{
		Namespace:   *ns,
		Root:        root,
		pool:        pool,
		resourceMap: resourceMap,
	}
	return doc, nil
}

// NewBuilder seeds a string-interning Builder from this document's entire
// source string pool, in order, so that regenerating an unedited document
// assigns the same indices the source used. Callers that go on to mutate
// the tree keep using the same Builder for every subsequently interned
// string.
func (x *AXML) NewBuilder() (*Builder, error) {
	return NewBuilderFromPool(x.pool)
}

// Regenerate serializes this document into a fresh binary-XML byte buffer
// using builder to intern every referenced string. The resource map is
// copied verbatim from the source.
func (x *AXML) Regenerate(builder *Builder) []byte {
	content := bytesio.NewSink()

	content.PutI32(magicStartNS)
	content.PutU32(4 * 6)
	content.PutU32(1) // line number
	content.PutU32(noString)
	content.PutU32(builder.Put(x.Namespace.Prefix))
	content.PutU32(builder.Put(x.Namespace.URI))

	x.Root.regenerate(content, builder)

	content.PutI32(magicEndNS)
	content.PutU32(4 * 6)
	content.PutU32(1)
	content.PutU32(noString)
	content.PutU32(builder.Put(x.Namespace.Prefix))
	content.PutU32(builder.Put(x.Namespace.URI))

	stringPoolBytes := builder.Bytes()
	resourceMapBytes := x.resourceMap.Bytes()

	out := bytesio.NewSink()
	out.PutI32(magicXML)
	totalSize := headerFixedSize + len(stringPoolBytes) + len(resourceMapBytes) + content.Len()
	out.PutU32(uint32(totalSize))
	out.PutBytes(stringPoolBytes)
	out.PutBytes(resourceMapBytes)
	out.PutBytes(content.Bytes())

	return out.Bytes()
}

// DebugString renders a best-effort textual XML form of the whole document.
func (x *AXML) DebugString() string {
	return x.Root.DebugString()
}

func parseNamespaceStart(data []byte, pool *StringPool, offset int) (*Namespace, int, error) {
	magic, err := bytesio.I32(data, offset)
	if err != nil {
		return nil, 0, err
	}
	if magic != magicStartNS {
		return nil, 0, &FormatError{Offset: offset}
	}

	chunkSize, err := bytesio.U32(data, offset+4)
	if err != nil {
		return nil, 0, err
	}

	prefixSI, err := bytesio.U32(data, offset+4*4)
	if err != nil {
		return nil, 0, err
	}
	uriSI, err := bytesio.U32(data, offset+5*4)
	if err != nil {
		return nil, 0, err
	}

	prefix, err := pool.Get(prefixSI)
	if err != nil {
		return nil, 0, err
	}
	uri, err := pool.Get(uriSI)
	if err != nil {
		return nil, 0, err
	}

	return &Namespace{Prefix: prefix, URI: uri}, offset + int(chunkSize), nil
}

func validateNamespaceEnd(data []byte, pool *StringPool, ns *Namespace, offset int) error {
	magic, err := bytesio.I32(data, offset)
	if err != nil {
		return err
	}
	if magic != magicEndNS {
		return &FormatError{Offset: offset}
	}

	prefixSI, err := bytesio.U32(data, offset+4*4)
	if err != nil {
		return err
	}
	uriSI, err := bytesio.U32(data, offset+5*4)
	if err != nil {
		return err
	}

	prefix, err := pool.Get(prefixSI)
	if err != nil {
		return err
	}
	uri, err := pool.Get(uriSI)
	if err != nil {
		return err
	}

	if prefix != ns.Prefix || uri != ns.URI {
		return &FormatError{Offset: offset}
	}
	return nil
}
