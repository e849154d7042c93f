// SPDX-License-Identifier: ice License 1.0

package router

import (
	"strings"
	"unicode"
)

//nolint:gochecknoglobals // Immutable lookup tables.
var (
	readStatements = map[string]struct{}{"select": {}, "with": {}, "values": {}, "show": {}, "explain": {}, "table": {}, "fetch": {}}
	writeKeywords  = []string{"insert", "update", "delete", "merge", "into", "nextval", "setval"}
	writePrefixes  = []string{"pg_advisory", "pg_try_advisory"}
	rowLockClauses = []string{"for update", "for no key update", "for share", "for key share"}
)

// Classify decides whether sql has to run on the write target. A leading {{writable}} or {{non-writable}} hint
// wins and is stripped from the returned statement. Anything that is not recognizably read-only is a write.
func Classify(sql string) (string, Kind) {
	stripped := stripLeadingNoise(sql)
	trimmed := strings.ToLower(stripped)
	for hint, kind := range map[string]Kind{nonWritableHint: KindRead, writableHint: KindWrite} {
		if strings.HasPrefix(trimmed, hint) {
			return sql[:len(sql)-len(stripped)] + stripped[len(hint):], kind
		}
	}
	words := strings.FieldsFunc(trimmed, sqlWordBoundary)
	if len(words) == 0 {
		return sql, KindWrite
	}
	if _, isRead := readStatements[words[0]]; !isRead {
		return sql, KindWrite
	}
	for _, word := range words[1:] {
		for _, keyword := range writeKeywords {
			if word == keyword {
				return sql, KindWrite
			}
		}
		for _, prefix := range writePrefixes {
			if strings.HasPrefix(word, prefix) {
				return sql, KindWrite
			}
		}
	}
	normalized := strings.Join(words, " ")
	for _, clause := range rowLockClauses {
		if strings.Contains(normalized, clause) {
			return sql, KindWrite
		}
	}

	return sql, KindRead
}

func sqlWordBoundary(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}

func stripLeadingNoise(sql string) string {
	for {
		sql = strings.TrimLeftFunc(sql, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsControl(r) || r == '('
		})
		switch {
		case strings.HasPrefix(sql, "--"):
			if _, rest, found := strings.Cut(sql, "\n"); found {
				sql = rest
			} else {
				return ""
			}
		case strings.HasPrefix(sql, "/*"):
			if _, rest, found := strings.Cut(sql, "*/"); found {
				sql = rest
			} else {
				return ""
			}
		default:
			return sql
		}
	}
}
