package axml

import "github.com/go-apkedit/apkedit/bytesio"

// buildMinimalDoc constructs the raw bytes of a minimal binary-XML document
// equivalent to:
//
//	<manifest xmlns:android="http://schemas.android.com/apk/res/android">
//	  <application/>
//	</manifest>
//
// with an empty resource map, for use across this package's tests.
func buildMinimalDoc() []byte {
	b := NewBuilder()

	content := bytesio.NewSink()
	content.PutI32(magicStartNS)
	content.PutU32(4 * 6)
	content.PutU32(1)
	content.PutU32(noString)
	content.PutU32(b.Put("android"))
	content.PutU32(b.Put(androidNamespaceURI))

	root := Element{
		TagName: "manifest",
		Children: []Element{
			{TagName: "application"},
		},
	}
	root.regenerate(content, b)

	content.PutI32(magicEndNS)
	content.PutU32(4 * 6)
	content.PutU32(1)
	content.PutU32(noString)
	content.PutU32(b.Put("android"))
	content.PutU32(b.Put(androidNamespaceURI))

	stringPoolBytes := b.Bytes()

	resourceMap := bytesio.NewSink()
	resourceMap.PutI32(magicResourceMap)
	resourceMap.PutU32(8) // chunk size: header only, zero entries

	out := bytesio.NewSink()
	out.PutI32(magicXML)
	totalSize := headerFixedSize + len(stringPoolBytes) + resourceMap.Len() + content.Len()
	out.PutU32(uint32(totalSize))
	out.PutBytes(stringPoolBytes)
	out.PutBytes(resourceMap.Bytes())
	out.PutBytes(content.Bytes())

	return out.Bytes()
}
