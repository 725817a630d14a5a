package extractor

import (
	"strings"
)

// stripComments removes // line comments and /* */ block comments that sit
// outside string literals.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}

		switch {
		case c == '"' || c == '\'':
			quote = c
			b.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 3
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// repair rewrites JSON5-ish text into strict JSON:
//   - text before the first '{' and after its matching '}' is dropped
//   - single-quoted strings become double-quoted
//   - raw newlines and tabs inside strings are escaped
//   - bare identifier keys are quoted
//   - trailing commas before '}' or ']' are removed
func repair(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	s = s[start:]

	var b strings.Builder
	b.Grow(len(s) + 16)

	depth := 0
	last := byte(0) // last significant byte written outside strings
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			i = copyString(&b, s, i)
			last = '"'
			continue

		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
		case c == ',':
			if next := nextSignificant(s, i+1); next == '}' || next == ']' {
				continue
			}
		case isIdentStart(c) && (last == '{' || last == ','):
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			if nextSignificant(s, j) == ':' {
				b.WriteByte('"')
				b.WriteString(s[i:j])
				b.WriteByte('"')
				last = '"'
				i = j - 1
				continue
			}
		}

		b.WriteByte(c)
		if !isSpace(c) {
			last = c
		}
		if depth == 0 {
			break
		}
	}
	return b.String()
}

// copyString writes the string literal starting at s[i] as a double-quoted
// JSON string and returns the index of its closing quote.
func copyString(b *strings.Builder, s string, i int) int {
	quote := s[i]
	b.WriteByte('"')
	for i++; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i++
			if s[i] == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte('\\')
				b.WriteByte(s[i])
			}
		case c == quote:
			b.WriteByte('"')
			return i
		case c == '"':
			b.WriteString(`\"`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return i
}

func nextSignificant(s string, i int) byte {
	for ; i < len(s); i++ {
		if !isSpace(s[i]) {
			return s[i]
		}
	}
	return 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '-'
}
