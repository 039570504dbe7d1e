package gateway

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeSQL defensively cleans generator-produced SQL text before
// validation. Upstream generators wrap statements in quotes, code
// fences, or partial JSON, and escape nested quoting; this pass strips
// those artifacts without touching the statement itself.
//
// Steps, in order: NFC unicode normalization, markdown fence removal,
// iterative unwrapping of quote/brace pairs, unescaping of nested
// quotes, and trimming of unbalanced trailing JSON artifacts.
func NormalizeSQL(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.TrimSpace(s)
	s = stripFences(s)

	for {
		t := stripWrapping(strings.TrimSpace(s))
		if t == s {
			break
		}
		s = t
	}

	if strings.Contains(s, `\"`) {
		s = strings.ReplaceAll(s, `\"`, `"`)
	}
	if strings.Contains(s, `\'`) {
		s = strings.ReplaceAll(s, `\'`, `'`)
	}

	s = trimTrailingArtifacts(s)
	return strings.TrimSpace(s)
}

// stripFences removes a markdown code fence (``` or ```sql) around the
// statement.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language tag like "sql" on the fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "" || isWord(first) {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// isWord reports whether s is a single alphabetic token.
func isWord(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(s) > 0
}

// stripWrapping removes one layer of matching wrapper characters:
// quotes, backticks, braces, or brackets enclosing the whole statement.
func stripWrapping(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	switch {
	case first == '"' && last == '"',
		first == '\'' && last == '\'',
		first == '`' && last == '`',
		first == '{' && last == '}',
		first == '[' && last == ']':
		return s[1 : len(s)-1]
	}
	return s
}

// trimTrailingArtifacts drops unbalanced closers and dangling quotes the
// generator left at the end of the statement ("}, '], trailing commas).
// Balanced characters - a brace closing a real opener, a quote closing a
// literal - are left alone.
func trimTrailingArtifacts(s string) string {
	for {
		t := strings.TrimRight(s, " \t\n\r")
		switch {
		case strings.HasSuffix(t, ";"):
			t = t[:len(t)-1]
		case strings.HasSuffix(t, ","):
			t = t[:len(t)-1]
		case strings.HasSuffix(t, "}") && strings.Count(t, "}") > strings.Count(t, "{"):
			t = t[:len(t)-1]
		case strings.HasSuffix(t, "]") && strings.Count(t, "]") > strings.Count(t, "["):
			t = t[:len(t)-1]
		case strings.HasSuffix(t, `"`) && strings.Count(t, `"`)%2 == 1:
			t = t[:len(t)-1]
		case strings.HasSuffix(t, `'`) && strings.Count(t, `'`)%2 == 1:
			t = t[:len(t)-1]
		default:
			return t
		}
		s = t
	}
}
