package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrUnavailable is returned when a set cannot be loaded and no cached copy
// exists.
var ErrUnavailable = errors.New("catalog unavailable")

// Cache loads sets lazily from a Source and keeps them per set id until
// invalidated. It is safe for concurrent use; concurrent loads of the same
// set share one read.
type Cache struct {
	src    Source
	flight singleflight.Group

	mu            sync.RWMutex
	sets          map[string]*Set
	aliases       Aliases
	aliasesLoaded bool
	gen           uint64
}

// NewCache creates an empty cache over src.
func NewCache(src Source) *Cache {
	return &Cache{
		src:  src,
		sets: make(map[string]*Set),
	}
}

// Set returns the set with the given id, loading it on first use.
func (c *Cache) Set(id string) (*Set, error) {
	c.mu.RLock()
	s, ok := c.sets[id]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, err, _ := c.flight.Do("set:"+id, func() (any, error) {
		return c.load(id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Set), nil
}

func (c *Cache) load(id string) (*Set, error) {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	aliases := c.Aliases()

	raw, err := c.src.ReadSet(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	set, err := parseSet(id, raw, aliases)
	if err != nil {
		return nil, fmt.Errorf("%w: set %s: %w", ErrUnavailable, id, err)
	}

	c.mu.Lock()
	// A Clear or Invalidate that raced with this load wins; the caller still
	// gets the freshly parsed set.
	if c.gen == gen {
		c.sets[id] = set
	}
	c.mu.Unlock()
	return set, nil
}

// Aliases returns the alias table, loading it on first use. A missing or
// invalid table yields an empty table; aliasing is an enhancement, not a
// requirement.
func (c *Cache) Aliases() Aliases {
	c.mu.RLock()
	if c.aliasesLoaded {
		a := c.aliases
		c.mu.RUnlock()
		return a
	}
	c.mu.RUnlock()

	v, _, _ := c.flight.Do("aliases", func() (any, error) {
		a := Aliases{}
		raw, err := c.src.ReadAliases()
		if err == nil && validate("aliases", raw) == nil {
			if err := json.Unmarshal(raw, &a); err != nil {
				a = Aliases{}
			}
		}
		c.mu.Lock()
		c.aliases = a
		c.aliasesLoaded = true
		c.mu.Unlock()
		return a, nil
	})
	return v.(Aliases)
}

// Resolve maps slug to its canonical slug.
func (c *Cache) Resolve(slug string) string {
	return c.Aliases().Resolve(slug)
}

// Lookup searches every known set for a problem with the canonical slug.
// Sets that fail to load are skipped.
func (c *Cache) Lookup(canonical string) (Problem, bool) {
	for _, id := range SetIDs() {
		s, err := c.Set(id)
		if err != nil {
			continue
		}
		if ci, pi, ok := s.Find(canonical); ok {
			return s.Categories[ci].Problems[pi], true
		}
	}
	return Problem{}, false
}

// Invalidate drops the cached copy of one set.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.sets, id)
	c.gen++
	c.mu.Unlock()
}

// Clear drops every cached set and the alias table.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.sets = make(map[string]*Set)
	c.aliases = nil
	c.aliasesLoaded = false
	c.gen++
	c.mu.Unlock()
}

// parseSet validates and decodes a set file, resolving canonical slugs.
func parseSet(id string, raw []byte, aliases Aliases) (*Set, error) {
	if err := validate("set", raw); err != nil {
		return nil, err
	}
	var set Set
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	set.ID = id
	for ci := range set.Categories {
		probs := set.Categories[ci].Problems
		for pi := range probs {
			probs[pi].CanonicalSlug = aliases.Resolve(probs[pi].Slug)
		}
	}
	return &set, nil
}
