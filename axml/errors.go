package axml

import "fmt"

// FormatError is returned for structural faults encountered while parsing
// a binary-XML byte stream: bad magic, a declared size mismatching the
// buffer, a wrong chunk magic where one was expected, or mismatched tag or
// namespace closures.
type FormatError struct {
	Offset int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("file format error at %d", e.Offset)
}
