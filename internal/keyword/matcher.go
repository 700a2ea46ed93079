package keyword

import (
	"regexp"
	"strings"
)

// wordPattern matches runs of word characters across all Unicode
// letters and digits; plain \w is ASCII-only here and would split
// umlauts and accented letters out of their tokens.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Detect returns the keywords found in text, each exactly once, ordered
// by first occurrence, in the casing the token carried in the text.
// The index contributes membership only, never casing. Punctuation
// around a token does not prevent a match.
func Detect(text string, idx *Index) []string {
	if text == "" || idx == nil || idx.Len() == 0 {
		return []string{}
	}
	found := []string{}
	seen := make(map[string]struct{})
	for _, token := range wordPattern.FindAllString(text, -1) {
		lc := strings.ToLower(token)
		if !idx.Contains(lc) {
			continue
		}
		if _, dup := seen[lc]; dup {
			continue
		}
		seen[lc] = struct{}{}
		found = append(found, token)
	}
	return found
}
