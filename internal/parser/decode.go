package parser

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Encoding names reported on DocTree.Encoding.
const (
	EncodingUTF8    = "utf-8"
	EncodingUTF8BOM = "utf-8-bom"
	EncodingUTF16LE = "utf-16le"
	EncodingUTF16BE = "utf-16be"
	EncodingEUCKR   = "euc-kr"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeText converts raw bytes to NFC-normalized UTF-8 and reports the
// detected encoding. A byte order mark selects UTF-8 or UTF-16. Input without
// one that is not valid UTF-8 is read as EUC-KR (CP949), which is what most
// older Korean novel dumps use.
//
// NFC matters for segmentation: a file saved on macOS may spell 화 as two
// conjoining jamo and would never match the episode patterns.
func DecodeText(src []byte) (string, string, error) {
	var (
		dec  *encoding.Decoder
		name string
	)
	switch {
	case bytes.HasPrefix(src, bomUTF8):
		src, name = src[len(bomUTF8):], EncodingUTF8BOM
	case bytes.HasPrefix(src, bomUTF16LE):
		dec, name = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder(), EncodingUTF16LE
	case bytes.HasPrefix(src, bomUTF16BE):
		dec, name = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder(), EncodingUTF16BE
	case utf8.Valid(src):
		name = EncodingUTF8
	default:
		dec, name = korean.EUCKR.NewDecoder(), EncodingEUCKR
	}

	if dec != nil {
		out, _, err := transform.Bytes(dec, src)
		if err != nil {
			return "", name, fmt.Errorf("decode %s: %w", name, err)
		}
		src = out
	}
	return norm.NFC.String(string(src)), name, nil
}
