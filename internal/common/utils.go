package common

import "strings"

// SplitList splits a comma-separated value, trimming blanks and dropping
// empty entries. It returns nil for an empty input.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
