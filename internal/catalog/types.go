package catalog

import "fmt"

// Difficulty is the published difficulty of a problem.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// UnknownRank sorts problems with an unrecognized difficulty after every
// known difficulty.
const UnknownRank = 3

// Rank returns the ordering rank used by difficulty-first traversal.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 0
	case DifficultyMedium:
		return 1
	case DifficultyHard:
		return 2
	default:
		return UnknownRank
	}
}

// Problem is a single catalog entry.
//
// Slug is the entry's own slug and may be an alias; CanonicalSlug is the
// alias-resolved identity used for solve tracking.
type Problem struct {
	Slug          string     `json:"slug"`
	CanonicalSlug string     `json:"canonicalSlug"`
	Title         string     `json:"title"`
	Difficulty    Difficulty `json:"difficulty"`
	ExternalID    int        `json:"id,omitempty"`
}

// URL returns the problem page the redirect rule points at.
func (p Problem) URL() string {
	return ProblemURL(p.Slug)
}

// ProblemURL builds the LeetCode problem URL for slug.
func ProblemURL(slug string) string {
	return fmt.Sprintf("https://leetcode.com/problems/%s/", slug)
}

// Category is an ordered group of problems.
type Category struct {
	Name     string    `json:"name"`
	Problems []Problem `json:"problems"`
}

// Set is a named curriculum. Sets are immutable once loaded.
type Set struct {
	ID         string     `json:"id"`
	Categories []Category `json:"categories"`
}

// Total returns the number of problems across all categories.
func (s *Set) Total() int {
	n := 0
	for _, c := range s.Categories {
		n += len(c.Problems)
	}
	return n
}

// Contains reports whether any problem in the set has the canonical slug.
func (s *Set) Contains(canonical string) bool {
	_, _, ok := s.Find(canonical)
	return ok
}

// Find returns the category and problem index of the first problem with the
// canonical slug.
func (s *Set) Find(canonical string) (int, int, bool) {
	for ci, c := range s.Categories {
		for pi, p := range c.Problems {
			if p.CanonicalSlug == canonical {
				return ci, pi, true
			}
		}
	}
	return 0, 0, false
}

// Problem returns the problem at the given indices.
func (s *Set) Problem(categoryIndex, problemIndex int) (Problem, bool) {
	if categoryIndex < 0 || categoryIndex >= len(s.Categories) {
		return Problem{}, false
	}
	probs := s.Categories[categoryIndex].Problems
	if problemIndex < 0 || problemIndex >= len(probs) {
		return Problem{}, false
	}
	return probs[problemIndex], true
}

// Last returns the indices and problem of the last problem of the last
// non-empty category.
func (s *Set) Last() (int, int, Problem, bool) {
	for ci := len(s.Categories) - 1; ci >= 0; ci-- {
		probs := s.Categories[ci].Problems
		if len(probs) > 0 {
			pi := len(probs) - 1
			return ci, pi, probs[pi], true
		}
	}
	return 0, 0, Problem{}, false
}

// Known catalog set identifiers.
const (
	SetBlind75     = "blind75"
	SetNeetCode150 = "neetcode150"
	SetNeetCode250 = "neetcode250"
	SetNeetCodeAll = "neetcodeAll"

	DefaultSetID = SetNeetCode250
)

// SetIDs returns every known set id in display order.
func SetIDs() []string {
	return []string{SetBlind75, SetNeetCode150, SetNeetCode250, SetNeetCodeAll}
}

// IsKnownSet reports whether id names a known catalog set.
func IsKnownSet(id string) bool {
	for _, s := range SetIDs() {
		if s == id {
			return true
		}
	}
	return false
}
