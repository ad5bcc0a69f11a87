// Package strings holds the list normalisation shared by configuration and
// the record services.
package strings

import (
	"slices"
	"strings"
)

// DedupeAndTrim trims every element and drops empty and repeated ones,
// keeping first-seen order.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SortedSet is DedupeAndTrim with the result sorted, so two inputs naming the
// same members compare equal.
func SortedSet(values []string) []string {
	out := DedupeAndTrim(values)
	slices.Sort(out)
	return out
}

// SplitList splits a comma separated value into its distinct non-empty
// entries. An empty value yields nil.
func SplitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(v, ","))
}
