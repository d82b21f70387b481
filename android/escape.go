package android

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// knownEscapes are the characters that may follow a backslash in an
// already-escaped Android string.
const knownEscapes = `ubtnfr\UBTNFR`

// Sanitize escapes content for embedding inside a resources element.
//
// Apostrophes, quotes, backslashes and bare ampersands are escaped. Newlines
// become "\n" followed by a literal newline. Content holding '<' is kept as
// markup when it parses as well-formed XML; otherwise '<' and '>' are written
// as entities.
func Sanitize(content string) string {
	replaceLtGt := strings.Contains(content, "<") && !wellFormed(content)

	var b strings.Builder
	b.Grow(len(content) + 8)

	n := len(content)
	inside := false
	for i := 0; i < n; i++ {
		c := content[i]
		if inside {
			b.WriteByte(c)
			if c == '>' {
				inside = false
			}
			continue
		}

		switch c {
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString("\\n\n")
		case '\\':
			if i+1 < n && strings.IndexByte(knownEscapes, content[i+1]) >= 0 {
				b.WriteByte(c)
				b.WriteByte(content[i+1])
				i++
			} else {
				b.WriteString(`\\`)
			}
		case '&':
			if isEntity(content, i+1) {
				b.WriteByte('&')
			} else {
				b.WriteString("&amp;")
			}
		case '<':
			if replaceLtGt {
				b.WriteString("&lt;")
			} else {
				inside = true
				b.WriteByte('<')
			}
		case '>':
			if replaceLtGt {
				b.WriteString("&gt;")
			} else {
				b.WriteByte('>')
			}
		case '"':
			// A fully quoted value keeps its outer quotes.
			if (i == 0 && content[n-1] == '"') || (i == n-1 && content[0] == '"') {
				b.WriteByte('"')
			} else {
				b.WriteString(`\"`)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Desanitize reverses Sanitize for \" \' \\ \n and the &lt; &gt; &amp;
// entities. Other escapes and entities are left untouched. A literal newline
// right after an escaped \n is dropped; any other raw newline collapses to a
// space, as Android does.
func Desanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	n := len(text)
	for i := 0; i < n; i++ {
		c := text[i]
		switch c {
		case '\\':
			if i+1 >= n {
				b.WriteByte(c)
				continue
			}
			i++
			switch next := text[i]; next {
			case '"', '\'', '\\':
				b.WriteByte(next)
			case 'n':
				b.WriteByte('\n')
				if i+1 < n && text[i+1] == '\n' {
					i++
				}
			default:
				b.WriteByte('\\')
				b.WriteByte(next)
			}
		case '&':
			end := strings.IndexByte(text[i:], ';')
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			switch text[i+1 : i+end] {
			case "lt":
				b.WriteByte('<')
			case "gt":
				b.WriteByte('>')
			case "amp":
				b.WriteByte('&')
			default:
				b.WriteString(text[i : i+end+1])
			}
			i += end
		case '\n':
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// isEntity reports whether s[i:] starts the body of an entity reference
// (the part after '&'), e.g. "amp;", "#39;" or "#x27;".
func isEntity(s string, i int) bool {
	numeric, hex := false, false
	start := i
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ';':
			return i > start && !(numeric && i == start+1) && !(hex && i == start+2)
		case i == start && c == '#':
			numeric = true
		case numeric && i == start+1 && (c == 'x' || c == 'X'):
			hex = true
		case hex:
			if !isHexDigit(c) {
				return false
			}
		case numeric:
			if c < '0' || c > '9' {
				return false
			}
		default:
			if !isLetter(c) && !(i > start && c >= '0' && c <= '9') {
				return false
			}
		}
	}
	return false
}

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// wellFormed reports whether content parses as XML once wrapped in a root
// element. Bare ampersands are escaped first since Sanitize handles them
// on its own.
func wellFormed(content string) bool {
	var b strings.Builder
	b.WriteString("<a>")
	for i := 0; i < len(content); i++ {
		if content[i] == '&' && !isEntity(content, i+1) {
			b.WriteString("&amp;")
			continue
		}
		b.WriteByte(content[i])
	}
	b.WriteString("</a>")

	dec := xml.NewDecoder(strings.NewReader(b.String()))
	dec.Strict = true
	dec.Entity = xml.HTMLEntity
	for {
		_, err := dec.Token()
		if err != nil {
			return errors.Is(err, io.EOF)
		}
	}
}
