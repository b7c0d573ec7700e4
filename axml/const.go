package axml

// Chunk magics, straight from the wire-format grammar: each is a full
// little-endian 32-bit word, unlike the teacher's id:u16|headerLen:u16
// split encoding, so each is read and compared as one 32-bit word and
// written as a plain int32.
const (
	magicXML         = 0x00080003
	magicStringPool  = 0x001C0001
	magicResourceMap = 0x00080180
	magicStartNS     = 0x00100100
	magicEndNS       = 0x00100101
	magicStartTag    = 0x00100102
	magicEndTag      = 0x00100103
)

// noString is the sentinel string-index value meaning "absent".
const noString uint32 = 0xFFFFFFFF

// androidNamespaceURI is the fixed namespace used by manifest attributes
// added through the manifest facade.
const androidNamespaceURI = "http://schemas.android.com/apk/res/android"

// stringValueType marks an attribute's Data field as a string-pool index.
const stringValueType uint32 = 0x03000008
