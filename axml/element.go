package axml

import (
	"strconv"

	"github.com/go-apkedit/apkedit/bytesio"
)

// Attribute is one attribute on an Element.
type Attribute struct {
	NamespaceURI *string // nil = no namespace
	Name         string
	NameIndex    uint32
	ValueType    uint32
	StringValue  *string // nil = no string value
	Data         uint32
}

// Element is one node of the parsed element tree.
type Element struct {
	TagName  string
	Attrs    []Attribute
	Children []Element
}

// AppendChild appends a new child element, preserving child order.
func (e *Element) AppendChild(child Element) {
	e.Children = append(e.Children, child)
}

// NewStringAttr builds a string-typed attribute the way the manifest facade
// needs it: android: namespace, value_type = string reference, Data set to
// whatever string-pool index the caller already interned for value.
func NewStringAttr(nameIndex uint32, name, value string, dataIndex uint32) Attribute {
	ns := androidNamespaceURI
	v := value
	return Attribute{
		NamespaceURI: &ns,
		Name:         name,
		NameIndex:    nameIndex,
		ValueType:    stringValueType,
		StringValue:  &v,
		Data:         dataIndex,
	}
}

const (
	startTagFixedWords = 9
	attrWords          = 5
	endTagFixedWords   = 6
)

// parseElement recursively parses one START_TAG ... END_TAG subtree
// starting at *offset, advancing *offset past the END_TAG.
func parseElement(data []byte, pool *StringPool, offset *int) (Element, error) {
	tagType, err := bytesio.I32(data, *offset)
	if err != nil {
		return Element{}, err
	}
	if tagType != magicStartTag {
		return Element{}, &FormatError{Offset: *offset}
	}

	nameSI, err := bytesio.U32(data, *offset+5*4)
	if err != nil {
		return Element{}, err
	}
	attrCount, err := bytesio.U32(data, *offset+7*4)
	if err != nil {
		return Element{}, err
	}

	tagName, err := pool.Get(nameSI)
	if err != nil {
		return Element{}, err
	}

	*offset += startTagFixedWords * 4

	el := Element{TagName: tagName}

	for i := uint32(0); i < attrCount; i++ {
		nsSI, err := bytesio.U32(data, *offset)
		if err != nil {
			return Element{}, err
		}
		nameSI, err := bytesio.U32(data, *offset+1*4)
		if err != nil {
			return Element{}, err
		}
		rawValueSI, err := bytesio.U32(data, *offset+2*4)
		if err != nil {
			return Element{}, err
		}
		valueType, err := bytesio.U32(data, *offset+3*4)
		if err != nil {
			return Element{}, err
		}
		attrData, err := bytesio.U32(data, *offset+4*4)
		if err != nil {
			return Element{}, err
		}

		attrName, err := pool.Get(nameSI)
		if err != nil {
			return Element{}, err
		}

		attr := Attribute{
			Name:      attrName,
			NameIndex: nameSI,
			ValueType: valueType,
			Data:      attrData,
		}

		if nsSI != noString {
			ns, err := pool.Get(nsSI)
			if err != nil {
				return Element{}, err
			}
			attr.NamespaceURI = &ns
		}
		if rawValueSI != noString {
			sv, err := pool.Get(rawValueSI)
			if err != nil {
				return Element{}, err
			}
			attr.StringValue = &sv
		}

		el.Attrs = append(el.Attrs, attr)
		*offset += attrWords * 4
	}

	for *offset < len(data) {
		chunkType, err := bytesio.I32(data, *offset)
		if err != nil {
			return Element{}, err
		}

		switch chunkType {
		case magicStartTag:
			child, err := parseElement(data, pool, offset)
			if err != nil {
				return Element{}, err
			}
			el.Children = append(el.Children, child)
		case magicEndTag:
			closeNameSI, err := bytesio.U32(data, *offset+5*4)
			if err != nil {
				return Element{}, err
			}
			closeName, err := pool.Get(closeNameSI)
			if err != nil {
				return Element{}, err
			}
			*offset += endTagFixedWords * 4
			if closeName != tagName {
				return Element{}, &FormatError{Offset: *offset}
			}
			return el, nil
		default:
			return Element{}, &FormatError{Offset: *offset}
		}
	}

	return Element{}, &FormatError{Offset: *offset}
}

// regenerate emits this element's START_TAG, its attributes, its children
// (recursively), and its matching END_TAG, interning every referenced
// string through builder as a side effect.
func (e *Element) regenerate(sink *bytesio.Sink, builder *Builder) {
	sink.PutI32(magicStartTag)
	sink.PutU32(uint32(startTagFixedWords*4 + len(e.Attrs)*attrWords*4))
	sink.PutU32(1)          // line number
	sink.PutU32(noString)   // comment
	sink.PutU32(noString)   // namespace
	sink.PutU32(builder.Put(e.TagName))
	sink.PutU32(0x00140014) // flags
	sink.PutU32(uint32(len(e.Attrs)))
	sink.PutU32(0) // class_attr

	for _, attr := range e.Attrs {
		sink.PutU32(builder.PutOptional(attr.NamespaceURI))
		sink.PutU32(attr.NameIndex)
		sink.PutU32(builder.PutOptional(attr.StringValue))
		sink.PutU32(attr.ValueType)
		sink.PutU32(attr.Data)
	}

	for i := range e.Children {
		e.Children[i].regenerate(sink, builder)
	}

	sink.PutI32(magicEndTag)
	sink.PutU32(endTagFixedWords * 4)
	sink.PutU32(1)
	sink.PutU32(noString)
	sink.PutU32(noString)
	sink.PutU32(builder.Put(e.TagName))
}

// DebugString renders a best-effort textual XML form of the subtree, for
// diagnostics and tests; it is not used by the regeneration path.
func (e *Element) DebugString() string {
	var b []byte
	e.appendDebugString(&b)
	return string(b)
}

func (e *Element) appendDebugString(b *[]byte) {
	*b = append(*b, '<')
	*b = append(*b, e.TagName...)
	*b = append(*b, ' ')
	for _, attr := range e.Attrs {
		*b = append(*b, attr.Name...)
		*b = append(*b, '=')
		*b = append(*b, '"')
		if attr.StringValue != nil {
			*b = append(*b, *attr.StringValue...)
		} else {
			*b = append(*b, strconv.FormatUint(uint64(attr.Data), 10)...)
		}
		*b = append(*b, '"')
		*b = append(*b, ' ')
	}
	*b = append(*b, '>')

	for i := range e.Children {
		e.Children[i].appendDebugString(b)
	}

	*b = append(*b, '<', '/')
	*b = append(*b, e.TagName...)
	*b = append(*b, '>')
}

