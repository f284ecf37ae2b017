package pdf

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
)

// wordGapThreshold is the TJ displacement (thousandths of text space) treated
// as a word break.
const wordGapThreshold = -250

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokNumber
	tokString
	tokName
	tokArrayStart
	tokArrayEnd
	tokOther
)

type token struct {
	kind tokenKind
	text string
	num  float64
	raw  []byte
}

// contentLexer tokenizes a decoded PDF page content stream
type contentLexer struct {
	data []byte
	pos  int
}

func isWhitespace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *contentLexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isWhitespace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

func (l *contentLexer) next() (token, bool) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return token{}, false
	}

	c := l.data[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokString, raw: l.literalString()}, true
	case c == '<' && l.pos+1 < len(l.data) && l.data[l.pos+1] == '<':
		l.pos += 2
		return token{kind: tokOther, text: "<<"}, true
	case c == '>' && l.pos+1 < len(l.data) && l.data[l.pos+1] == '>':
		l.pos += 2
		return token{kind: tokOther, text: ">>"}, true
	case c == '<':
		l.pos++
		return token{kind: tokString, raw: l.hexString()}, true
	case c == '[':
		l.pos++
		return token{kind: tokArrayStart}, true
	case c == ']':
		l.pos++
		return token{kind: tokArrayEnd}, true
	case c == '/':
		l.pos++
		return token{kind: tokName, text: l.word()}, true
	case isDelimiter(c):
		l.pos++
		return token{kind: tokOther, text: string(c)}, true
	}

	w := l.word()
	if n, err := strconv.ParseFloat(w, 64); err == nil {
		return token{kind: tokNumber, num: n, text: w}, true
	}
	return token{kind: tokOperator, text: w}, true
}

func (l *contentLexer) word() string {
	start := l.pos
	for l.pos < len(l.data) && !isWhitespace(l.data[l.pos]) && !isDelimiter(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// literalString reads up to the balancing ')' and resolves escapes
func (l *contentLexer) literalString() []byte {
	var out []byte
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		case '\\':
			if l.pos >= len(l.data) {
				return out
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.data); i++ {
						d := l.data[l.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v*8 + int(d-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		default:
			out = append(out, c)
		}
	}
	return out
}

func (l *contentLexer) hexString() []byte {
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		c := l.data[l.pos]
		if !isWhitespace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return out
}

// skipInlineImage advances past binary inline image data up to EI
func (l *contentLexer) skipInlineImage() {
	for l.pos+2 < len(l.data) {
		if isWhitespace(l.data[l.pos]) && l.data[l.pos+1] == 'E' && l.data[l.pos+2] == 'I' &&
			(l.pos+3 == len(l.data) || isWhitespace(l.data[l.pos+3])) {
			l.pos += 3
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}

// decodeText converts a PDF string operand to UTF-8. Strings with a UTF-16BE
// byte order mark are decoded as UTF-16, everything else as WinAnsi.
func decodeText(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		units := make([]uint16, 0, (len(raw)-2)/2)
		for i := 2; i+1 < len(raw); i += 2 {
			units = append(units, uint16(raw[i])<<8|uint16(raw[i+1]))
		}
		return string(utf16.Decode(units))
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// textBuilder accumulates shown text and collapses redundant breaks
type textBuilder struct {
	b strings.Builder
}

func (t *textBuilder) write(s string) {
	t.b.WriteString(s)
}

func (t *textBuilder) space() {
	s := t.b.String()
	if s == "" || strings.HasSuffix(s, " ") || strings.HasSuffix(s, "\n") {
		return
	}
	t.b.WriteByte(' ')
}

func (t *textBuilder) newline() {
	s := t.b.String()
	if s == "" || strings.HasSuffix(s, "\n") {
		return
	}
	t.b.WriteByte('\n')
}

func (t *textBuilder) String() string {
	lines := strings.Split(t.b.String(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// TextFromContentStream extracts the shown text from a decoded content stream.
// Positioning operators that move to a new line become line breaks and large
// negative TJ displacements become spaces.
func TextFromContentStream(content []byte) string {
	lex := &contentLexer{data: content}
	out := &textBuilder{}

	var operands []token
	var array []token
	inArray := false

	for {
		tok, ok := lex.next()
		if !ok {
			break
		}

		switch tok.kind {
		case tokArrayStart:
			inArray = true
			array = array[:0]
			continue
		case tokArrayEnd:
			inArray = false
			operands = append(operands, token{kind: tokArrayEnd})
			continue
		}
		if inArray {
			array = append(array, tok)
			continue
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			if s, ok := lastString(operands); ok {
				out.write(decodeText(s))
			}
		case "'", "\"":
			out.newline()
			if s, ok := lastString(operands); ok {
				out.write(decodeText(s))
			}
		case "TJ":
			for _, el := range array {
				switch el.kind {
				case tokString:
					out.write(decodeText(el.raw))
				case tokNumber:
					if el.num < wordGapThreshold {
						out.space()
					}
				}
			}
			array = array[:0]
		case "T*", "ET":
			out.newline()
		case "Td", "TD":
			if len(operands) >= 2 && operands[len(operands)-1].kind == tokNumber {
				if operands[len(operands)-1].num != 0 {
					out.newline()
				} else if operands[len(operands)-2].kind == tokNumber && operands[len(operands)-2].num != 0 {
					out.space()
				}
			}
		case "Tm":
			out.newline()
		case "BI":
			lex.skipInlineImage()
		}
		operands = operands[:0]
	}

	return out.String()
}

func lastString(operands []token) ([]byte, bool) {
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].kind == tokString {
			return operands[i].raw, true
		}
	}
	return nil, false
}
