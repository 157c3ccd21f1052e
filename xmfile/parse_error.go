package xmfile

import (
	"fmt"
)

// ParseError describes a malformed XM file.
//
// The same type is used for the parser warnings
// (see ParserConfig.OnWarning).
type ParseError struct {
	// Location is a path-like description of the file part
	// being decoded, like "pattern[2]" or "instrument[0].sample[1]".
	// It's empty for the song header.
	Location string

	Message string

	// Offset is a byte offset inside the file data.
	Offset int
}

func (e *ParseError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("%s (offset=%d)", e.Message, e.Offset)
	}
	return fmt.Sprintf("%s: %s (offset=%d)", e.Location, e.Message, e.Offset)
}
