package generation

import "strings"

// Sanitize is a best-effort repair of raw generator output before parsing:
// trim, strip a surrounding markdown code fence regardless of language tag,
// then isolate the outermost JSON array or object span. expectArray picks
// which span wins when both exist. Never fails; text that contains no
// plausible JSON span comes back trimmed and otherwise untouched, for the
// contract validator to reject with context.
func Sanitize(raw string, expectArray bool) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	s = stripCodeFence(s)

	firstArr := strings.Index(s, "[")
	lastArr := strings.LastIndex(s, "]")
	firstObj := strings.Index(s, "{")
	lastObj := strings.LastIndex(s, "}")

	arrSpan := firstArr >= 0 && lastArr > firstArr
	objSpan := firstObj >= 0 && lastObj > firstObj

	if expectArray {
		if arrSpan {
			return s[firstArr : lastArr+1]
		}
		if objSpan {
			return s[firstObj : lastObj+1]
		}
		return s
	}

	if objSpan {
		return s[firstObj : lastObj+1]
	}
	if arrSpan {
		return s[firstArr : lastArr+1]
	}
	return s
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	// Drop the opening fence line (``` or ```json) and a closing fence if present.
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "```" {
		return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
	}
	return strings.TrimSpace(strings.Join(lines[1:], "\n"))
}
