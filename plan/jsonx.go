package plan

import (
	"errors"
	"strings"
)

// ErrNoObject means the text contained no balanced JSON object.
var ErrNoObject = errors.New("plan: no JSON object in text")

// ExtractObject returns the first balanced {...} object found in s, scanning
// brace depth while respecting string literals and escapes. Markdown fences
// are stripped first since models love wrapping JSON in them.
func ExtractObject(s string) (string, error) {
	s = stripFences(s)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrNoObject
}

func stripFences(s string) string {
	out := strings.Builder{}
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.String()
}
