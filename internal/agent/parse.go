package agent

import (
	"regexp"
	"strings"
)

var (
	// sqlBlockRe matches a fenced ```sql block holding a SELECT statement.
	sqlBlockRe = regexp.MustCompile("(?is)```(?:sql)?[\\s\\n]*(SELECT[\\s\\S]*?)[\\s\\n]*```")

	// bareSelectRe matches an unfenced SELECT up to a semicolon or end of
	// text. Fallback when the model skips the code fence.
	bareSelectRe = regexp.MustCompile(`(?is)\b(SELECT\b[^;]*)`)

	// databaseIDRe picks an explicit "database <id>" mention out of the
	// question or an interpreter reply.
	databaseIDRe = regexp.MustCompile(`(?i)database\s+(\w+)`)

	// verdictRe matches the validator protocol line. The validator prompt
	// requires the response to end with VALIDATION: PASS or
	// VALIDATION: FAIL, optionally followed by a reason.
	verdictRe = regexp.MustCompile(`(?i)VALIDATION:\s*(PASS|FAIL)\s*(.*)`)
)

// ExtractSQL pulls the first SELECT statement out of a model response,
// preferring fenced blocks. Returns "" when no parseable SQL is present.
func ExtractSQL(text string) string {
	if m := sqlBlockRe.FindStringSubmatch(text); m != nil {
		return strings.TrimRight(strings.TrimSpace(m[1]), ";")
	}
	if m := bareSelectRe.FindStringSubmatch(text); m != nil {
		return strings.TrimRight(strings.TrimSpace(m[1]), ";")
	}
	return ""
}

// ExtractDatabaseID finds an explicit database mention in text. Returns ""
// when absent.
func ExtractDatabaseID(text string) string {
	if m := databaseIDRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// ParseVerdict reads the validator's verdict line. ok is false when the
// response carries no verdict at all.
func ParseVerdict(text string) (pass bool, reason string, ok bool) {
	m := verdictRe.FindStringSubmatch(text)
	if m == nil {
		return false, "", false
	}
	pass = strings.EqualFold(m[1], "PASS")
	reason = strings.TrimSpace(m[2])
	return pass, reason, true
}
