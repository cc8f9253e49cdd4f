// Package codec implements the little-endian binary reader/writer used for
// every wire packet and every binary catalog table in channelcore.
package codec

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// StringEncoding selects how a length-prefixed string field is transcoded.
type StringEncoding int

const (
	// UTF8 is the default encoding for most server-data and chat text.
	UTF8 StringEncoding = iota
	// CP932 (Shift-JIS superset) is used for character/demon names.
	CP932
	// UTF16LE is used by legacy client fields that carry 16-bit code units.
	UTF16LE
)

func (e StringEncoding) codec() encoding.Encoding {
	switch e {
	case CP932:
		return japanese.ShiftJIS
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	default:
		return encoding.Nop
	}
}

func (e StringEncoding) encodeBytes(s string) ([]byte, error) {
	return e.codec().NewEncoder().Bytes([]byte(s))
}

func (e StringEncoding) decodeBytes(b []byte) (string, error) {
	out, err := e.codec().NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
