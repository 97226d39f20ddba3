package catalog

import "sort"

// Aliases maps alias slugs to canonical slugs. Many aliases may share one
// canonical slug.
type Aliases map[string]string

// Resolve returns the canonical slug for slug, or slug itself when it is not
// an alias.
func (a Aliases) Resolve(slug string) string {
	if c, ok := a[slug]; ok && c != "" {
		return c
	}
	return slug
}

// AliasFor returns an alias pointing at canonical. When several aliases
// exist the lexicographically smallest is returned so the answer is stable.
func (a Aliases) AliasFor(canonical string) (string, bool) {
	var found []string
	for alias, c := range a {
		if c == canonical {
			found = append(found, alias)
		}
	}
	if len(found) == 0 {
		return "", false
	}
	sort.Strings(found)
	return found[0], true
}

// SolutionSlug returns the slug NeetCode uses for a problem: the slug itself
// when it is an alias, otherwise an alias of it, otherwise the slug.
func (a Aliases) SolutionSlug(slug string) string {
	if _, ok := a[slug]; ok {
		return slug
	}
	if alias, ok := a.AliasFor(slug); ok {
		return alias
	}
	return slug
}

// SolutionURL returns the NeetCode solution page for slug.
func (a Aliases) SolutionURL(slug string) string {
	return "https://neetcode.io/solutions/" + a.SolutionSlug(slug)
}
