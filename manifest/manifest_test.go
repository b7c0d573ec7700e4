package manifest

import (
	"testing"

	"github.com/go-apkedit/apkedit/axml"
	"github.com/go-apkedit/apkedit/bytesio"
)

// Chunk magic numbers and sentinels from the binary-XML wire format, mirrored
// here (rather than imported) because axml keeps them unexported; tests build
// raw documents to exercise Parse against known-good bytes.
const (
	testMagicXML         = 0x00080003
	testMagicResourceMap = 0x00080180
	testMagicStartNS     = 0x00100100
	testMagicEndNS       = 0x00100101
	testMagicStartTag    = 0x00100102
	testMagicEndTag      = 0x00100103
	testNoString         = 0xFFFFFFFF
	androidNS            = "http://schemas.android.com/apk/res/android"
)

// encodeElement writes one START_TAG...END_TAG subtree, interning every
// referenced string through b, mirroring axml's own regeneration shape.
func encodeElement(sink *bytesio.Sink, b *axml.Builder, e axml.Element) {
	sink.PutI32(testMagicStartTag)
	sink.PutU32(uint32(9*4 + len(e.Attrs)*5*4))
	sink.PutU32(1)
	sink.PutU32(testNoString)
	sink.PutU32(testNoString)
	sink.PutU32(b.Put(e.TagName))
	sink.PutU32(0x00140014)
	sink.PutU32(uint32(len(e.Attrs)))
	sink.PutU32(0)

	for _, attr := range e.Attrs {
		sink.PutU32(b.PutOptional(attr.NamespaceURI))
		sink.PutU32(attr.NameIndex)
		sink.PutU32(b.PutOptional(attr.StringValue))
		sink.PutU32(attr.ValueType)
		sink.PutU32(attr.Data)
	}

	for _, child := range e.Children {
		encodeElement(sink, b, child)
	}

	sink.PutI32(testMagicEndTag)
	sink.PutU32(6 * 4)
	sink.PutU32(1)
	sink.PutU32(testNoString)
	sink.PutU32(testNoString)
	sink.PutU32(b.Put(e.TagName))
}

// encodeDoc wraps root in a full binary-XML document: string pool, an empty
// resource map, a single android namespace, and the element subtree.
func encodeDoc(root axml.Element, b *axml.Builder) []byte {
	content := bytesio.NewSink()
	content.PutI32(testMagicStartNS)
	content.PutU32(4 * 6)
	content.PutU32(1)
	content.PutU32(testNoString)
	content.PutU32(b.Put("android"))
	content.PutU32(b.Put(androidNS))

	encodeElement(content, b, root)

	content.PutI32(testMagicEndNS)
	content.PutU32(4 * 6)
	content.PutU32(1)
	content.PutU32(testNoString)
	content.PutU32(b.Put("android"))
	content.PutU32(b.Put(androidNS))

	stringPoolBytes := b.Bytes()

	resourceMap := bytesio.NewSink()
	resourceMap.PutI32(testMagicResourceMap)
	resourceMap.PutU32(8)

	out := bytesio.NewSink()
	out.PutI32(testMagicXML)
	totalSize := 8 + len(stringPoolBytes) + resourceMap.Len() + content.Len()
	out.PutU32(uint32(totalSize))
	out.PutBytes(stringPoolBytes)
	out.PutBytes(resourceMap.Bytes())
	out.PutBytes(content.Bytes())

	return out.Bytes()
}

// buildManifest constructs a minimal compiled manifest document whose root
// <manifest> has childrenBefore non-application elements preceding
// <application>, so tests can exercise the "application is not the first
// child" boundary case (spec.md §8 boundary case 8). The string pool is
// seeded so that indices 3 and 5 hold "name" and "authorities", the fixed
// attribute-name indices the facade writes for android:name and
// android:authorities.
func buildManifest(childrenBefore ...string) []byte {
	b := axml.NewBuilder()
	for _, s := range []string{"android", androidNS, "manifest", "name", "application", "authorities"} {
		_ = b.Put(s)
	}

	root := axml.Element{TagName: "manifest"}
	for _, tag := range childrenBefore {
		root.AppendChild(axml.Element{TagName: tag})
	}
	root.AppendChild(axml.Element{TagName: "application"})

	return encodeDoc(root, b)
}

func TestAddActivity(t *testing.T) {
	data := buildManifest()
	m, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if err := m.AddActivity("com.example.MainActivity"); err != nil {
		t.Fatalf("AddActivity: %v", err)
	}

	out := m.Bytes()
	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse(regenerated): %v", err)
	}

	app, err := reparsed.application()
	if err != nil {
		t.Fatalf("application: %v", err)
	}
	if len(app.Children) != 1 || app.Children[0].TagName != "activity" {
		t.Fatalf("expected one activity child, got %+v", app.Children)
	}
	if got := attrValue(app.Children[0], "name"); got != "com.example.MainActivity" {
		t.Fatalf("unexpected activity name attr: %q", got)
	}
}

// TestAddProvider covers spec scenario S4.
func TestAddProvider(t *testing.T) {
	data := buildManifest()
	m, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if err := m.AddProvider("a.b.C", "a.b.P"); err != nil {
		t.Fatalf("AddProvider: %v", err)
	}

	out := m.Bytes()
	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse(regenerated): %v", err)
	}

	app, err := reparsed.application()
	if err != nil {
		t.Fatalf("application: %v", err)
	}
	if len(app.Children) != 1 || app.Children[0].TagName != "provider" {
		t.Fatalf("expected one provider child, got %+v", app.Children)
	}
	if got := attrValue(app.Children[0], "name"); got != "a.b.C" {
		t.Fatalf("unexpected provider name attr: %q", got)
	}
	if got := attrValue(app.Children[0], "authorities"); got != "a.b.P" {
		t.Fatalf("unexpected provider authorities attr: %q", got)
	}
}

// TestApplicationNotFirstChild covers spec.md §8 boundary case 8: the
// application element is found via a linear scan even when preceded by
// other root children.
func TestApplicationNotFirstChild(t *testing.T) {
	data := buildManifest("uses-sdk", "uses-permission")
	m, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !m.hasApp {
		t.Fatalf("application element not found")
	}
	if m.appIndex != 2 {
		t.Fatalf("expected application at index 2, got %d", m.appIndex)
	}

	if err := m.AddActivity("com.example.MainActivity"); err != nil {
		t.Fatalf("AddActivity: %v", err)
	}
}

func attrValue(e axml.Element, name string) string {
	for _, a := range e.Attrs {
		if a.Name == name && a.StringValue != nil {
			return *a.StringValue
		}
	}
	return ""
}
