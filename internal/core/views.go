package core

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey selects the ordering of the goal list.
type SortKey string

const (
	SortName     SortKey = "name"
	SortDeadline SortKey = "deadline"
	SortProgress SortKey = "progress"
)

// ParseSortKey maps a query value to a SortKey, falling back to SortName.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortDeadline:
		return SortDeadline
	case SortProgress:
		return SortProgress
	default:
		return SortName
	}
}

// ListOptions filters and orders ListView. An empty Category means all.
type ListOptions struct {
	Category string
	Sort     SortKey
}

// Categories returns the distinct categories in first-seen order.
func Categories(goals []Goal) []string {
	seen := make(map[string]struct{}, len(goals))
	out := make([]string, 0, len(goals))
	for _, g := range goals {
		if _, ok := seen[g.Category]; ok {
			continue
		}
		seen[g.Category] = struct{}{}
		out = append(out, g.Category)
	}
	return out
}

// ListView returns a filtered, sorted copy of goals. The input is never reordered.
func ListView(goals []Goal, opts ListOptions) []Goal {
	out := make([]Goal, 0, len(goals))
	for _, g := range goals {
		if opts.Category != "" && g.Category != opts.Category {
			continue
		}
		out = append(out, g)
	}

	switch opts.Sort {
	case SortDeadline:
		slices.SortStableFunc(out, func(a, b Goal) int {
			return a.Deadline.Compare(b.Deadline.Time)
		})
	case SortProgress:
		slices.SortStableFunc(out, func(a, b Goal) int {
			return ProgressRatio(b).Cmp(ProgressRatio(a))
		})
	default:
		// Collators keep internal buffers, so one per call.
		c := collate.New(language.English)
		slices.SortStableFunc(out, func(a, b Goal) int {
			return c.CompareString(a.Name, b.Name)
		})
	}
	return out
}
