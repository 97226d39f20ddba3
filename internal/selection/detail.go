package selection

import "github.com/abhisek/leetbuddy/internal/catalog"

// ProblemStatus is one row of the detailed progress view.
type ProblemStatus struct {
	Slug       string             `json:"slug"`
	Title      string             `json:"title"`
	Difficulty catalog.Difficulty `json:"difficulty"`
	Solved     bool               `json:"solved"`
	IsCurrent  bool               `json:"isCurrent"`
}

// CategoryDetail lists a category's problems in the order policy visits them.
type CategoryDetail struct {
	Name     string          `json:"name"`
	Solved   int             `json:"solved"`
	Total    int             `json:"total"`
	Problems []ProblemStatus `json:"problems"`
}

// Detail builds the per-problem progress view. current is the canonical slug
// of the assigned problem; matching by slug keeps IsCurrent right when the
// display order differs from catalog order.
func Detail(set *catalog.Set, solved map[string]bool, current string, policy Policy) []CategoryDetail {
	out := make([]CategoryDetail, 0, len(set.Categories))
	for _, cat := range set.Categories {
		d := CategoryDetail{Name: cat.Name, Total: len(cat.Problems)}
		for _, pi := range Order(cat, policy) {
			p := cat.Problems[pi]
			done := solved[p.CanonicalSlug]
			if done {
				d.Solved++
			}
			d.Problems = append(d.Problems, ProblemStatus{
				Slug:       p.Slug,
				Title:      p.Title,
				Difficulty: p.Difficulty,
				Solved:     done,
				IsCurrent:  current != "" && p.CanonicalSlug == current,
			})
		}
		out = append(out, d)
	}
	return out
}
