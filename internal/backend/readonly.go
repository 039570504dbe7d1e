package backend

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultDenylist contains the DDL/DML keywords no adapter ever accepts.
// Matching is case-insensitive and on word boundaries, so a column named
// "update_date" does not trip the UPDATE entry.
var DefaultDenylist = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
	"TRUNCATE", "GRANT", "REVOKE", "MERGE", "COPY",
	"ATTACH", "DETACH", "PRAGMA", "VACUUM", "REINDEX",
}

// ReadOnlyPolicy is the engine-local enforcement of the read-only
// guarantee. Each adapter configures its own policy:
//
//   - embedded engine: statement must begin with SELECT, full denylist
//   - cloud warehouse: SELECT or WITH allowed as leading keyword
//   - pooled relational: denylist only (the adapter doubles as a
//     metadata/config store, so leading-keyword checks stay off)
//
// The policy is the sole gate between untrusted SQL text and the engine;
// validation failures must never reach ExecuteQuery.
type ReadOnlyPolicy struct {
	requireSelect bool
	allowWith     bool
	deny          *regexp.Regexp
}

// NewReadOnlyPolicy builds a policy from a denylist. An empty denylist
// falls back to DefaultDenylist.
func NewReadOnlyPolicy(requireSelect, allowWith bool, denylist []string) ReadOnlyPolicy {
	if len(denylist) == 0 {
		denylist = DefaultDenylist
	}
	pattern := `(?i)\b(` + strings.Join(denylist, "|") + `)\b`
	return ReadOnlyPolicy{
		requireSelect: requireSelect,
		allowWith:     allowWith,
		deny:          regexp.MustCompile(pattern),
	}
}

// Validate checks a statement against the policy.
// Returns (false, reason) for statements that must not execute.
func (p ReadOnlyPolicy) Validate(sql string) (bool, string) {
	cleaned := stripLiteralsAndComments(sql)
	trimmed := strings.TrimSpace(cleaned)
	if trimmed == "" {
		return false, "only select statements are permitted: statement is empty"
	}

	if p.requireSelect {
		kw := leadingKeyword(trimmed)
		switch {
		case kw == "SELECT":
		case p.allowWith && kw == "WITH":
		default:
			return false, fmt.Sprintf("only select statements are permitted: statement begins with %s", kw)
		}
	}

	if m := p.deny.FindString(cleaned); m != "" {
		return false, fmt.Sprintf("only select statements are permitted: %s is not allowed", strings.ToUpper(m))
	}

	return true, ""
}

// leadingKeyword returns the first SQL word of a statement, uppercased.
func leadingKeyword(sql string) string {
	for i, r := range sql {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '(' || r == ';' {
			return strings.ToUpper(sql[:i])
		}
	}
	return strings.ToUpper(sql)
}

// stripLiteralsAndComments blanks out string literals, quoted identifiers,
// and comments so keyword matching can't be fooled by values like
// 'please DROP nothing' or identifiers like "Delete Flag".
func stripLiteralsAndComments(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))

	const (
		code = iota
		single
		double
		lineComment
		blockComment
	)
	state := code

	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch state {
		case code:
			switch {
			case r == '\'':
				state = single
				b.WriteRune(r)
			case r == '"':
				state = double
				b.WriteRune(r)
			case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
				state = lineComment
				i++
			case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
				state = blockComment
				i++
			default:
				b.WriteRune(r)
			}
		case single:
			if r == '\'' {
				// '' is an escaped quote inside the literal
				if i+1 < len(runes) && runes[i+1] == '\'' {
					i++
					continue
				}
				state = code
				b.WriteRune(r)
			}
		case double:
			if r == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					i++
					continue
				}
				state = code
				b.WriteRune(r)
			}
		case lineComment:
			if r == '\n' {
				state = code
				b.WriteRune(r)
			}
		case blockComment:
			if r == '*' && i+1 < len(runes) && runes[i+1] == '/' {
				state = code
				i++
			}
		}
	}

	return b.String()
}
