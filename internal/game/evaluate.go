package game

import "fmt"

// Evaluate classifies exactly four distinct items against the categories.
//
// Categories are scanned in store order. A category whose item set equals the
// selection is a match. Failing that, the first category sharing exactly three
// items is a near miss; later categories are not consulted. Anything else is a
// mismatch.
func Evaluate(selected []string, categories []Category) (Evaluation, error) {
	picked := make(map[string]struct{}, len(selected))
	for _, it := range selected {
		picked[it] = struct{}{}
	}
	if len(selected) != GroupSize || len(picked) != GroupSize {
		return Evaluation{Category: -1},
			fmt.Errorf("%w: want %d distinct items, got %d", ErrInvalidSubmission, GroupSize, len(picked))
	}

	for i, c := range categories {
		if overlap(c.Items, picked) == GroupSize {
			return Evaluation{Result: ResultMatch, Category: i}, nil
		}
	}
	for i, c := range categories {
		if overlap(c.Items, picked) == GroupSize-1 {
			return Evaluation{Result: ResultNearMiss, Category: i}, nil
		}
	}
	return Evaluation{Result: ResultMismatch, Category: -1}, nil
}

// overlap counts how many of items are in picked.
func overlap(items []string, picked map[string]struct{}) int {
	n := 0
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it]; dup {
			continue
		}
		seen[it] = struct{}{}
		if _, ok := picked[it]; ok {
			n++
		}
	}
	return n
}
