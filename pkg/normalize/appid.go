package normalize

import "regexp"

// applicationIDPattern matches "AD" followed by exactly eight digits as a
// whole word. Word characters and digits are Unicode-aware, so a letter such
// as "é" next to the identifier breaks the match; RE2's \b and \d are
// ASCII-only and cannot express that.
var applicationIDPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])(AD\p{Nd}{8})(?:[^\p{L}\p{N}_]|$)`)

// ExtractApplicationID returns the first application identifier in text
func ExtractApplicationID(text string) (string, bool) {
	match := applicationIDPattern.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return match[1], true
}
