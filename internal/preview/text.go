package preview

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"
)

const (
	encodingUTF8    = "utf-8"
	encodingUTF8BOM = "utf-8-bom"
	encodingUTF16LE = "utf-16le"
	encodingUTF16BE = "utf-16be"
)

type textRenderer struct{}

func (textRenderer) Render(ctx context.Context, src *Source) (*Document, error) {
	body, err := src.Body(ctx)
	if err != nil {
		return nil, err
	}

	doc := src.document()
	doc.Kind = KindText
	doc.Size = len(body.Data)
	doc.Truncated = body.Truncated
	doc.Text, doc.Encoding = decodeText(body.Data, body.Truncated)
	doc.Lines = countLines(doc.Text)
	doc.Language = Language(src.Name, src.ContentType)
	return doc, nil
}

func detectEncoding(data []byte) string {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return encodingUTF8BOM
	}
	if len(data) >= 2 {
		switch {
		case data[0] == 0xFF && data[1] == 0xFE:
			return encodingUTF16LE
		case data[0] == 0xFE && data[1] == 0xFF:
			return encodingUTF16BE
		}
	}
	return encodingUTF8
}

// decodeText converts a body to NFC UTF-8. A body cut at the byte limit may
// end inside a character, which is dropped rather than replaced.
func decodeText(data []byte, truncated bool) (string, string) {
	enc := detectEncoding(data)
	var text string
	switch enc {
	case encodingUTF8BOM:
		text = string(data[3:])
	case encodingUTF16LE, encodingUTF16BE:
		if truncated && len(data)%2 == 1 {
			data = data[:len(data)-1]
		}
		endian := unicode.LittleEndian
		if enc == encodingUTF16BE {
			endian = unicode.BigEndian
		}
		out, err := unicode.UTF16(endian, unicode.ExpectBOM).NewDecoder().Bytes(data)
		if err != nil {
			text = string(data)
		} else {
			text = string(out)
		}
	default:
		text = string(data)
	}

	if truncated {
		text = trimPartialRune(text)
	}
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return norm.NFC.String(text), enc
}

func trimPartialRune(s string) string {
	for i := 0; i < utf8.UTFMax-1 && len(s) > 0; i++ {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size != 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
