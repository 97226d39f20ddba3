// Package selection picks the assigned problem from a catalog set.
//
// Everything here is pure: callers pass the set, the solved slugs and the
// stored cursor, and persist whatever cursor comes back.
package selection

import (
	"math/rand/v2"
	"sort"

	"github.com/abhisek/leetbuddy/internal/catalog"
)

// Cursor is a position inside a set, always in original catalog indices.
type Cursor struct {
	CategoryIndex int `json:"categoryIndex"`
	ProblemIndex  int `json:"problemIndex"`
}

// CategoryProgress summarizes one category.
type CategoryProgress struct {
	Name       string  `json:"name"`
	Solved     int     `json:"solved"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Assignment is the problem the user must solve next.
type Assignment struct {
	Cursor
	Problem          catalog.Problem    `json:"problem"`
	CategoryName     string             `json:"categoryName"`
	TotalProblems    int                `json:"totalProblems"`
	SolvedCount      int                `json:"solvedCount"`
	AllSolved        bool               `json:"allSolved"`
	CategoryProgress []CategoryProgress `json:"categoryProgress"`
}

// Selector chooses assignments. The zero value is not usable; use New.
type Selector struct {
	intn func(n int) int
}

// New returns a Selector using the global random source.
func New() *Selector {
	return &Selector{intn: rand.IntN}
}

// NewWithRand returns a Selector whose random policy draws from intn, which
// must return a value in [0, n).
func NewWithRand(intn func(n int) int) *Selector {
	return &Selector{intn: intn}
}

// Select returns the next assignment under policy. The frontier is always
// derived from solved, so a stale cursor can never skip a problem. ok is false
// only when the set has no problems at all. When every problem is solved the
// assignment is the set's last problem with AllSolved set.
func (s *Selector) Select(set *catalog.Set, solved map[string]bool, policy Policy) (Assignment, bool) {
	if set == nil || set.Total() == 0 {
		return Assignment{}, false
	}

	var c Cursor
	found := false
	switch policy {
	case PolicyRandom:
		c, found = s.pickRandom(set, solved)
	case PolicyByDifficulty:
		c, found = firstUnsolved(set, solved, true)
	default:
		c, found = firstUnsolved(set, solved, false)
	}

	if !found {
		ci, pi, _, _ := set.Last()
		c = Cursor{CategoryIndex: ci, ProblemIndex: pi}
	}
	return build(set, solved, c), true
}

// Current returns the assignment at the stored cursor after clamping it to
// the set's shape. ok is false when the set has no problems.
func Current(set *catalog.Set, solved map[string]bool, cursor Cursor) (Assignment, bool) {
	c, ok := Clamp(set, cursor)
	if !ok {
		return Assignment{}, false
	}
	return build(set, solved, c), true
}

// Clamp moves cursor to the nearest valid position in set. Empty categories
// are skipped forward, then backward. ok is false when the set is empty.
func Clamp(set *catalog.Set, cursor Cursor) (Cursor, bool) {
	if set == nil || set.Total() == 0 {
		return Cursor{}, false
	}
	n := len(set.Categories)
	ci := min(max(cursor.CategoryIndex, 0), n-1)
	pi := cursor.ProblemIndex

	if len(set.Categories[ci].Problems) == 0 {
		next := -1
		for i := ci + 1; i < n && next < 0; i++ {
			if len(set.Categories[i].Problems) > 0 {
				next = i
			}
		}
		for i := ci - 1; i >= 0 && next < 0; i-- {
			if len(set.Categories[i].Problems) > 0 {
				next = i
			}
		}
		if next > ci {
			pi = 0
		} else {
			pi = len(set.Categories[next].Problems) - 1
		}
		ci = next
	}

	pi = min(max(pi, 0), len(set.Categories[ci].Problems)-1)
	return Cursor{CategoryIndex: ci, ProblemIndex: pi}, true
}

// Order returns the original problem indices of a category in visiting
// order for policy.
func Order(cat catalog.Category, policy Policy) []int {
	idx := make([]int, len(cat.Problems))
	for i := range idx {
		idx[i] = i
	}
	if policy == PolicyByDifficulty {
		sort.SliceStable(idx, func(a, b int) bool {
			return cat.Problems[idx[a]].Difficulty.Rank() < cat.Problems[idx[b]].Difficulty.Rank()
		})
	}
	return idx
}

// Progress returns per-category solved counts in catalog order.
func Progress(set *catalog.Set, solved map[string]bool) []CategoryProgress {
	out := make([]CategoryProgress, 0, len(set.Categories))
	for _, cat := range set.Categories {
		p := CategoryProgress{Name: cat.Name, Total: len(cat.Problems)}
		for _, prob := range cat.Problems {
			if solved[prob.CanonicalSlug] {
				p.Solved++
			}
		}
		if p.Total > 0 {
			p.Percentage = float64(p.Solved) * 100 / float64(p.Total)
		}
		out = append(out, p)
	}
	return out
}

func firstUnsolved(set *catalog.Set, solved map[string]bool, byDifficulty bool) (Cursor, bool) {
	policy := PolicySequential
	if byDifficulty {
		policy = PolicyByDifficulty
	}
	for ci, cat := range set.Categories {
		for _, pi := range Order(cat, policy) {
			if !solved[cat.Problems[pi].CanonicalSlug] {
				return Cursor{CategoryIndex: ci, ProblemIndex: pi}, true
			}
		}
	}
	return Cursor{}, false
}

func (s *Selector) pickRandom(set *catalog.Set, solved map[string]bool) (Cursor, bool) {
	var pool []Cursor
	for ci, cat := range set.Categories {
		for pi, p := range cat.Problems {
			if !solved[p.CanonicalSlug] {
				pool = append(pool, Cursor{CategoryIndex: ci, ProblemIndex: pi})
			}
		}
	}
	if len(pool) == 0 {
		return Cursor{}, false
	}
	return pool[s.intn(len(pool))], true
}

func build(set *catalog.Set, solved map[string]bool, c Cursor) Assignment {
	progress := Progress(set, solved)
	a := Assignment{
		Cursor:           c,
		Problem:          set.Categories[c.CategoryIndex].Problems[c.ProblemIndex],
		CategoryName:     set.Categories[c.CategoryIndex].Name,
		TotalProblems:    set.Total(),
		CategoryProgress: progress,
	}
	for _, p := range progress {
		a.SolvedCount += p.Solved
	}
	a.AllSolved = a.SolvedCount == a.TotalProblems
	return a
}
