package selection

import "strings"

// Policy decides the order in which unsolved problems are assigned.
type Policy string

const (
	// PolicySequential walks categories and problems in catalog order.
	PolicySequential Policy = "sequential"

	// PolicyByDifficulty walks categories in order but, inside each
	// category, visits Easy before Medium before Hard.
	PolicyByDifficulty Policy = "difficulty"

	// PolicyRandom picks uniformly among every unsolved problem.
	PolicyRandom Policy = "random"
)

// Policies returns every supported policy.
func Policies() []Policy {
	return []Policy{PolicySequential, PolicyByDifficulty, PolicyRandom}
}

// ParsePolicy maps a stored or user-supplied value to a Policy. Unknown
// values fall back to PolicySequential with ok set to false.
func ParsePolicy(s string) (p Policy, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sequential":
		return PolicySequential, true
	case "difficulty", "by-difficulty", "sequential-by-difficulty":
		return PolicyByDifficulty, true
	case "random":
		return PolicyRandom, true
	default:
		return PolicySequential, false
	}
}
