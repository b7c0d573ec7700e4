package zipfile

import "fmt"

// Known FormatError reasons, named so callers can compare them without
// parsing Error() strings.
const (
	ReasonEOCDNotFound             = "Central directory end not found"
	ReasonBadCentralDirectoryMagic = "magic of central directory error"
	ReasonBadLocalHeaderMagic      = "magic of local file header error"
	ReasonBadFileName              = "convert string fail"
	ReasonUnknownCompressMethod    = "unknown compression method"
	ReasonZip64Unsupported         = "zip64 sentinel fields are not supported"
)

// FormatError is returned for structural faults encountered while parsing
// a ZIP archive.
type FormatError struct {
	Offset int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("zip format error at %d: %s", e.Offset, e.Reason)
}
