package catalog

import (
	"errors"
	"io/fs"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
)

func TestDifficultyRank(t *testing.T) {
	tests := []struct {
		d    Difficulty
		want int
	}{
		{DifficultyEasy, 0},
		{DifficultyMedium, 1},
		{DifficultyHard, 2},
		{"Insane", UnknownRank},
		{"", UnknownRank},
	}
	for _, tt := range tests {
		if got := tt.d.Rank(); got != tt.want {
			t.Errorf("Rank(%q) = %d, want %d", tt.d, got, tt.want)
		}
	}
}

func TestAliasesResolve(t *testing.T) {
	a := Aliases{
		"two-integer-sum": "two-sum",
		"sum-of-two":      "two-sum",
	}

	if got := a.Resolve("two-integer-sum"); got != "two-sum" {
		t.Errorf("Resolve(alias) = %q, want two-sum", got)
	}
	if got := a.Resolve("valid-anagram"); got != "valid-anagram" {
		t.Errorf("Resolve(non-alias) = %q, want identity", got)
	}

	alias, ok := a.AliasFor("two-sum")
	if !ok || alias != "sum-of-two" {
		t.Errorf("AliasFor = %q, %v; want sum-of-two, true", alias, ok)
	}
	if _, ok := a.AliasFor("missing"); ok {
		t.Error("AliasFor(missing) should report false")
	}

	if got := a.SolutionURL("two-sum"); got != "https://neetcode.io/solutions/sum-of-two" {
		t.Errorf("SolutionURL(canonical) = %q", got)
	}
	if got := a.SolutionURL("two-integer-sum"); got != "https://neetcode.io/solutions/two-integer-sum" {
		t.Errorf("SolutionURL(alias) = %q", got)
	}
	if got := a.SolutionURL("lru-cache"); got != "https://neetcode.io/solutions/lru-cache" {
		t.Errorf("SolutionURL(plain) = %q", got)
	}
}

func TestSetNavigation(t *testing.T) {
	s := &Set{
		ID: "tiny",
		Categories: []Category{
			{Name: "A", Problems: []Problem{{Slug: "a1", CanonicalSlug: "a1"}, {Slug: "a2", CanonicalSlug: "a2"}}},
			{Name: "B", Problems: []Problem{{Slug: "b1", CanonicalSlug: "b1"}}},
			{Name: "Empty"},
		},
	}

	if got := s.Total(); got != 3 {
		t.Errorf("Total = %d, want 3", got)
	}
	if ci, pi, ok := s.Find("b1"); !ok || ci != 1 || pi != 0 {
		t.Errorf("Find(b1) = %d,%d,%v", ci, pi, ok)
	}
	if s.Contains("zz") {
		t.Error("Contains(zz) should be false")
	}
	if _, ok := s.Problem(5, 0); ok {
		t.Error("Problem out of range should report false")
	}
	ci, pi, p, ok := s.Last()
	if !ok || ci != 1 || pi != 0 || p.Slug != "b1" {
		t.Errorf("Last = %d,%d,%q,%v; want 1,0,b1,true", ci, pi, p.Slug, ok)
	}

	empty := &Set{Categories: []Category{{Name: "X"}}}
	if _, _, _, ok := empty.Last(); ok {
		t.Error("Last on empty set should report false")
	}
}

func TestEmbeddedCatalogsLoad(t *testing.T) {
	c := NewCache(EmbeddedSource())
	for _, id := range SetIDs() {
		s, err := c.Set(id)
		if err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
		if s.ID != id {
			t.Errorf("set id = %q, want %q", s.ID, id)
		}
		if s.Total() == 0 {
			t.Errorf("set %s is empty", id)
		}
	}
}

func TestCanonicalSlugResolvedAtLoad(t *testing.T) {
	c := NewCache(EmbeddedSource())
	s, err := c.Set(SetNeetCodeAll)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p, ok := s.Problem(0, 1)
	if !ok {
		t.Fatal("expected problem at 0,1")
	}
	if p.Slug != "duplicate-integer" || p.CanonicalSlug != "contains-duplicate" {
		t.Errorf("got slug %q canonical %q", p.Slug, p.CanonicalSlug)
	}
	if !s.Contains("two-sum") {
		t.Error("alias-named entry should be found by canonical slug")
	}
}

func TestLookupAcrossSets(t *testing.T) {
	c := NewCache(EmbeddedSource())
	p, ok := c.Lookup("serialize-and-deserialize-binary-tree")
	if !ok {
		t.Fatal("expected problem found in some set")
	}
	if p.Difficulty != DifficultyHard {
		t.Errorf("difficulty = %q, want Hard", p.Difficulty)
	}
	if _, ok := c.Lookup("not-a-problem"); ok {
		t.Error("Lookup(unknown) should report false")
	}
}

const validSet = `{"categories":[{"name":"A","problems":[{"slug":"x","title":"X","difficulty":"Easy"}]}]}`

func TestSchemaRejection(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{`},
		{"missing categories", `{}`},
		{"category without name", `{"categories":[{"problems":[]}]}`},
		{"problem without slug", `{"categories":[{"name":"A","problems":[{"title":"X"}]}]}`},
		{"numeric slug", `{"categories":[{"name":"A","problems":[{"slug":1,"title":"X"}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewFSSource(fstest.MapFS{
				"bad.json": {Data: []byte(tt.raw)},
			}, ".")
			_, err := NewCache(src).Set("bad")
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("err = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestMissingSetIsUnavailable(t *testing.T) {
	c := NewCache(NewFSSource(fstest.MapFS{}, "."))
	_, err := c.Set("nope")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want wrapped fs.ErrNotExist", err)
	}
}

func TestInvalidSetIDRejected(t *testing.T) {
	c := NewCache(EmbeddedSource())
	if _, err := c.Set("../secrets"); err == nil {
		t.Fatal("expected error for path-like set id")
	}
}

func TestInvalidAliasTableIgnored(t *testing.T) {
	src := NewFSSource(fstest.MapFS{
		"s.json":  {Data: []byte(validSet)},
		AliasFile: {Data: []byte(`{"x": 7}`)},
	}, ".")
	c := NewCache(src)
	if len(c.Aliases()) != 0 {
		t.Errorf("expected empty alias table, got %v", c.Aliases())
	}
	s, err := c.Set("s")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := s.Categories[0].Problems[0].CanonicalSlug; got != "x" {
		t.Errorf("canonical = %q, want x", got)
	}
}

// countingSource counts set reads so cache hits can be observed.
type countingSource struct {
	Source
	reads atomic.Int32
}

func (s *countingSource) ReadSet(id string) ([]byte, error) {
	s.reads.Add(1)
	return s.Source.ReadSet(id)
}

func TestCacheHitsAndInvalidate(t *testing.T) {
	src := &countingSource{Source: NewFSSource(fstest.MapFS{
		"s.json": {Data: []byte(validSet)},
	}, ".")}
	c := NewCache(src)

	for i := 0; i < 3; i++ {
		if _, err := c.Set("s"); err != nil {
			t.Fatalf("load: %v", err)
		}
	}
	if got := src.reads.Load(); got != 1 {
		t.Errorf("reads after cached loads = %d, want 1", got)
	}

	c.Invalidate("s")
	if _, err := c.Set("s"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := src.reads.Load(); got != 2 {
		t.Errorf("reads after invalidate = %d, want 2", got)
	}

	c.Clear()
	if _, err := c.Set("s"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := src.reads.Load(); got != 3 {
		t.Errorf("reads after clear = %d, want 3", got)
	}
}

func TestCacheConcurrentLoads(t *testing.T) {
	c := NewCache(EmbeddedSource())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Set(DefaultSetID); err != nil {
				t.Errorf("load: %v", err)
			}
		}()
	}
	wg.Wait()
}
