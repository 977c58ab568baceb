package common

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Generation services routinely wrap structured output in markdown fences or
// prefix it with an assignment ("rules = [...]"). These helpers strip that
// decoration before strict parsing. Stripping is a pre-pass, never part of
// the parser itself.

var (
	codeFenceRe  = regexp.MustCompile("(?s)^```(?:[a-zA-Z0-9_+-]+)?\\s*\\n(.*?)\\n?```$")
	assignmentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\s*=\s*`)
)

// CleanCodeFence removes a surrounding markdown code fence, including a
// language tag, if present.
func CleanCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if m := codeFenceRe.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// StripAssignment removes a leading "name =" token.
func StripAssignment(raw string) string {
	return strings.TrimSpace(assignmentRe.ReplaceAllString(strings.TrimSpace(raw), ""))
}

// ParseStringList parses a generation-service response into a flat list of
// strings. The response must be a list literal; anything else is rejected.
// JSON syntax is tried first, then a single-quoted variant of the same text.
func ParseStringList(raw string) ([]string, error) {
	cleaned := StripAssignment(CleanCodeFence(raw))
	if !strings.HasPrefix(cleaned, "[") || !strings.HasSuffix(cleaned, "]") {
		return nil, fmt.Errorf("response is not a list literal: %q", truncate(cleaned, 120))
	}

	var list []string
	if err := json.Unmarshal([]byte(cleaned), &list); err == nil {
		return list, nil
	}

	// Python-style lists use single quotes; normalize and retry.
	normalized := normalizeQuotes(cleaned)
	if err := json.Unmarshal([]byte(normalized), &list); err != nil {
		return nil, fmt.Errorf("response is not a list of strings: %q", truncate(cleaned, 120))
	}
	return list, nil
}

// normalizeQuotes rewrites single-quoted string elements as double-quoted
// JSON strings. Escaped quotes inside elements are handled; double quotes
// inside single-quoted elements are escaped.
func normalizeQuotes(s string) string {
	var b strings.Builder
	inSingle := false
	inDouble := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && (inSingle || inDouble):
			b.WriteByte(c)
			i++
			b.WriteByte(s[i])
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteByte('"')
		case c == '"' && inSingle:
			b.WriteString(`\"`)
		case c == '"' && !inSingle:
			inDouble = !inDouble
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
