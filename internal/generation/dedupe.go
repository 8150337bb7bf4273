package generation

import (
	"regexp"
	"strings"
)

var wsRE = regexp.MustCompile(`\s+`)

// NormalizeQuestion produces the comparison key for late-stage dedup: trim,
// collapse internal whitespace, lowercase. Deliberately looser than the
// contract's exact-identity answer check; near-identical questions are
// duplicates even when their whitespace differs.
func NormalizeQuestion(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = wsRE.ReplaceAllString(s, " ")
	return strings.ToLower(s)
}

// DedupDrafts drops intra-batch duplicates (by normalized question) and
// drafts whose exact question text already exists for the context. Unlike
// contract validation this trims rather than rejects: a duplicate is a
// recoverable byproduct of generation, not a violation, so a shrunk batch is
// still accepted.
func DedupDrafts(drafts []QuizDraft, persisted map[string]bool) (kept []QuizDraft, dropped int) {
	seen := make(map[string]bool, len(drafts))
	kept = make([]QuizDraft, 0, len(drafts))

	for _, d := range drafts {
		key := NormalizeQuestion(d.Question)
		if key == "" || seen[key] {
			dropped++
			continue
		}
		if persisted[d.Question] {
			dropped++
			continue
		}
		seen[key] = true
		kept = append(kept, d)
	}
	return kept, dropped
}
