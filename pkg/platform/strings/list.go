// Package strings holds small helpers for list-valued request parameters.
package strings

import (
	"strings"
)

// SplitList splits each comma-separated value, trims every element and drops
// empties and repeats. First occurrence wins.
//
//	SplitList("bio, karma", "bio,,hiring")
//	// []string{"bio", "karma", "hiring"}
func SplitList(values ...string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, dup := seen[part]; dup {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}
