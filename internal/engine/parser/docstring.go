package parser

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// docComment returns the cleaned doc string of a class or function body: the
// first statement when it is a plain string literal. Bytes and f-strings do
// not count.
func (c *ExtractionContext) docComment(body *sitter.Node) *string {
	if body == nil {
		return nil
	}
	var first *sitter.Node
	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)
		if child.Kind() == "comment" {
			continue
		}
		first = child
		break
	}
	if first == nil || first.Kind() != "expression_statement" || first.NamedChildCount() != 1 {
		return nil
	}

	expr := first.NamedChild(0)
	var value string
	switch expr.Kind() {
	case "string":
		v, ok := stringLiteralValue(c.Text(expr))
		if !ok {
			return nil
		}
		value = v
	case "concatenated_string":
		var b strings.Builder
		for i := uint(0); i < expr.NamedChildCount(); i++ {
			part := expr.NamedChild(i)
			if part.Kind() == "comment" {
				continue
			}
			v, ok := stringLiteralValue(c.Text(part))
			if !ok {
				return nil
			}
			b.WriteString(v)
		}
		value = b.String()
	default:
		return nil
	}

	doc := cleanDoc(value)
	return &doc
}

// stringLiteralValue evaluates a Python str literal. ok is false for bytes,
// f-strings and anything that is not a well-formed literal.
func stringLiteralValue(raw string) (string, bool) {
	prefixEnd := 0
	for prefixEnd < len(raw) && strings.ContainsRune("rRbBuUfFtT", rune(raw[prefixEnd])) {
		prefixEnd++
	}
	prefix := strings.ToLower(raw[:prefixEnd])
	if strings.ContainsAny(prefix, "bft") {
		return "", false
	}
	body := raw[prefixEnd:]

	quoteLen := 1
	if strings.HasPrefix(body, `"""`) || strings.HasPrefix(body, `'''`) {
		quoteLen = 3
	}
	if len(body) < 2*quoteLen || (body[0] != '"' && body[0] != '\'') {
		return "", false
	}
	content := body[quoteLen : len(body)-quoteLen]
	if strings.Contains(prefix, "r") {
		return content, true
	}
	return unescapePython(content), true
}

// unescapePython decodes backslash escapes the way a non-raw str literal
// does. Unknown escapes are kept verbatim.
func unescapePython(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' || i+1 >= len(s) {
			b.WriteByte(ch)
			continue
		}
		next := s[i+1]
		switch next {
		case '\n':
			i++
		case '\r':
			i++
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case '\\', '\'', '"':
			b.WriteByte(next)
			i++
		case 'a':
			b.WriteByte('\a')
			i++
		case 'b':
			b.WriteByte('\b')
			i++
		case 'f':
			b.WriteByte('\f')
			i++
		case 'n':
			b.WriteByte('\n')
			i++
		case 'r':
			b.WriteByte('\r')
			i++
		case 't':
			b.WriteByte('\t')
			i++
		case 'v':
			b.WriteByte('\v')
			i++
		case 'x':
			if r, ok := parseHexRune(s, i+2, 2); ok {
				b.WriteRune(r)
				i += 3
				continue
			}
			b.WriteByte(ch)
		case 'u':
			if r, ok := parseHexRune(s, i+2, 4); ok {
				b.WriteRune(r)
				i += 5
				continue
			}
			b.WriteByte(ch)
		case 'U':
			if r, ok := parseHexRune(s, i+2, 8); ok {
				b.WriteRune(r)
				i += 9
				continue
			}
			b.WriteByte(ch)
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i + 1
			for j < len(s) && j < i+4 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(s[i+1:j], 8, 32)
			b.WriteRune(rune(v))
			i = j - 1
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func parseHexRune(s string, start, width int) (rune, bool) {
	if start+width > len(s) {
		return 0, false
	}
	v, err := strconv.ParseUint(s[start:start+width], 16, 32)
	if err != nil || !utf8.ValidRune(rune(v)) {
		return 0, false
	}
	return rune(v), true
}

// cleanDoc mirrors Python's inspect.cleandoc: expand tabs, strip the first
// line's leading whitespace, remove the common indentation of the remaining
// lines, then drop leading and trailing lines left empty.
func cleanDoc(doc string) string {
	lines := strings.Split(expandTabs(doc, 8), "\n")

	margin := math.MaxInt
	for _, line := range lines[1:] {
		content := utf8.RuneCountInString(strings.TrimLeftFunc(line, unicode.IsSpace))
		if content == 0 {
			continue
		}
		if indent := utf8.RuneCountInString(line) - content; indent < margin {
			margin = indent
		}
	}

	lines[0] = strings.TrimLeftFunc(lines[0], unicode.IsSpace)
	if margin < math.MaxInt {
		for i := 1; i < len(lines); i++ {
			lines[i] = dropRunes(lines[i], margin)
		}
	}

	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}

// dropRunes removes the first n runes of s.
func dropRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[i:]
		}
		n--
	}
	return ""
}

func expandTabs(s string, size int) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		switch r {
		case '\t':
			spaces := size - col%size
			b.WriteString(strings.Repeat(" ", spaces))
			col += spaces
		case '\n', '\r':
			b.WriteRune(r)
			col = 0
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}
