package redirect

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxUserDomains caps the user-editable exclusion list.
const MaxUserDomains = 10

var (
	ErrInvalidDomain   = errors.New("invalid domain")
	ErrDuplicateDomain = errors.New("domain already excluded")
	ErrSystemDomain    = errors.New("domain is always excluded")
	ErrTooManyDomains  = fmt.Errorf("at most %d user domains", MaxUserDomains)
	ErrIndexOutOfRange = errors.New("exclusion index out of range")
)

var domainPattern = regexp.MustCompile(
	`^[a-zA-Z0-9]([a-zA-Z0-9-_.]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-_.]*[a-zA-Z0-9])?)*\.[a-zA-Z]{2,}$`)

// SystemDomains are never redirected: the problem site itself, the
// solutions site, and the sign-in provider.
func SystemDomains() []string {
	return []string{"leetcode.com", "neetcode.io", "accounts.google.com"}
}

// DefaultUserDomains seed a fresh user list.
func DefaultUserDomains() []string {
	return []string{"github.com", "linkedin.com"}
}

// Exclusions is the exclusion list split by ownership.
type Exclusions struct {
	System []string `json:"system"`
	User   []string `json:"user"`
	Max    int      `json:"max"`
}

// NewExclusions wraps a user list with the fixed system list.
func NewExclusions(user []string) Exclusions {
	if user == nil {
		user = []string{}
	}
	return Exclusions{System: SystemDomains(), User: user, Max: MaxUserDomains}
}

// All returns system domains followed by user domains.
func (e Exclusions) All() []string {
	out := make([]string, 0, len(e.System)+len(e.User))
	out = append(out, e.System...)
	return append(out, e.User...)
}

// NormalizeDomain trims and lowercases d and checks its shape.
func NormalizeDomain(d string) (string, error) {
	d = strings.ToLower(strings.TrimSpace(d))
	if d == "" || !domainPattern.MatchString(d) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, d)
	}
	return d, nil
}

// EffectiveUser returns the user list to enforce. A list that was never
// stored, or that fails validation, falls back to the defaults.
func EffectiveUser(stored []string, ok bool) []string {
	if !ok || validateList(stored) != nil {
		return DefaultUserDomains()
	}
	return append([]string{}, stored...)
}

// AddDomain appends d to list after validation.
func AddDomain(list []string, d string) ([]string, error) {
	norm, err := NormalizeDomain(d)
	if err != nil {
		return nil, err
	}
	if isSystem(norm) {
		return nil, fmt.Errorf("%w: %s", ErrSystemDomain, norm)
	}
	for _, existing := range list {
		if strings.EqualFold(existing, norm) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDomain, norm)
		}
	}
	if len(list) >= MaxUserDomains {
		return nil, ErrTooManyDomains
	}
	out := append([]string{}, list...)
	return append(out, norm), nil
}

// RemoveDomain drops the entry at index.
func RemoveDomain(list []string, index int) ([]string, error) {
	if index < 0 || index >= len(list) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	out := make([]string, 0, len(list)-1)
	out = append(out, list[:index]...)
	return append(out, list[index+1:]...), nil
}

func validateList(list []string) error {
	if len(list) > MaxUserDomains {
		return ErrTooManyDomains
	}
	seen := make(map[string]bool, len(list))
	for _, d := range list {
		norm, err := NormalizeDomain(d)
		if err != nil {
			return err
		}
		if isSystem(norm) {
			return fmt.Errorf("%w: %s", ErrSystemDomain, norm)
		}
		if seen[norm] {
			return fmt.Errorf("%w: %s", ErrDuplicateDomain, norm)
		}
		seen[norm] = true
	}
	return nil
}

func isSystem(d string) bool {
	for _, s := range SystemDomains() {
		if s == d {
			return true
		}
	}
	return false
}
