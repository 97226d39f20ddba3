package redirect

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestNewRuleShape(t *testing.T) {
	r := NewRule("https://leetcode.com/problems/two-sum/", []string{"leetcode.com", "github.com"})
	if r.ID != RuleID || r.Priority != 1 {
		t.Errorf("id/priority = %d/%d", r.ID, r.Priority)
	}
	if r.Action.Type != "redirect" || r.Action.Redirect.URL != "https://leetcode.com/problems/two-sum/" {
		t.Errorf("action = %+v", r.Action)
	}
	if r.Condition.URLFilter != "|http" || !reflect.DeepEqual(r.Condition.ResourceTypes, []string{"main_frame"}) {
		t.Errorf("condition = %+v", r.Condition)
	}
	if len(r.Condition.ExcludedRequestDomains) != 2 {
		t.Errorf("excluded = %v", r.Condition.ExcludedRequestDomains)
	}
}

func TestFilePrimitiveInstallRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rules.json")
	p := NewFilePrimitive(path)
	ctx := context.Background()

	rule := NewRule("https://leetcode.com/problems/two-sum/", SystemDomains())
	if err := p.Install(ctx, rule); err != nil {
		t.Fatalf("install: %v", err)
	}
	rules, err := p.Rules()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rules) != 1 || !reflect.DeepEqual(rules[0], rule) {
		t.Errorf("rules = %+v, want [%+v]", rules, rule)
	}

	if err := p.Remove(ctx); err != nil {
		t.Fatalf("remove: %v", err)
	}
	rules, _ = p.Rules()
	if len(rules) != 0 {
		t.Errorf("rules after remove = %+v", rules)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestFilePrimitiveSkipsUnchangedWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	p := NewFilePrimitive(path)
	ctx := context.Background()
	rule := NewRule("https://leetcode.com/problems/two-sum/", nil)

	if err := p.Install(ctx, rule); err != nil {
		t.Fatalf("install: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if err := p.Install(ctx, rule); err != nil {
		t.Fatalf("reinstall: %v", err)
	}
	info, _ := os.Stat(path)
	if !info.ModTime().Equal(old) {
		t.Error("unchanged install rewrote the file")
	}

	// A fresh primitive picks up the on-disk state too.
	if err := NewFilePrimitive(path).Install(ctx, rule); err != nil {
		t.Fatalf("install from fresh primitive: %v", err)
	}
	info, _ = os.Stat(path)
	if !info.ModTime().Equal(old) {
		t.Error("fresh primitive rewrote identical content")
	}
}

func TestFilePrimitiveReportsWriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := NewFilePrimitive(filepath.Join(blocker, "rules.json"))
	if err := p.Remove(context.Background()); err == nil {
		t.Fatal("expected error writing below a regular file")
	}
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"github.com", "github.com", true},
		{"  Docs.Example.ORG ", "docs.example.org", true},
		{"my-site.co.uk", "my-site.co.uk", true},
		{"localhost", "", false},
		{"http://github.com", "", false},
		{"-bad.com", "", false},
		{"bad-.com", "", false},
		{"example.c", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := NormalizeDomain(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("NormalizeDomain(%q) = %q, %v", tt.in, got, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidDomain) {
			t.Errorf("NormalizeDomain(%q) error %v is not ErrInvalidDomain", tt.in, err)
		}
	}
}

func TestAddDomain(t *testing.T) {
	list := DefaultUserDomains()

	got, err := AddDomain(list, "Example.com")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"github.com", "linkedin.com", "example.com"}) {
		t.Errorf("list = %v", got)
	}
	if len(list) != 2 {
		t.Error("AddDomain mutated its input")
	}

	tests := []struct {
		domain string
		want   error
	}{
		{"GitHub.com", ErrDuplicateDomain},
		{"leetcode.com", ErrSystemDomain},
		{"not a domain", ErrInvalidDomain},
	}
	for _, tt := range tests {
		if _, err := AddDomain(list, tt.domain); !errors.Is(err, tt.want) {
			t.Errorf("AddDomain(%q) err = %v, want %v", tt.domain, err, tt.want)
		}
	}

	full := []string{"a1.com", "a2.com", "a3.com", "a4.com", "a5.com", "a6.com", "a7.com", "a8.com", "a9.com", "a10.com"}
	if _, err := AddDomain(full, "a11.com"); !errors.Is(err, ErrTooManyDomains) {
		t.Errorf("add to full list err = %v", err)
	}
}

func TestRemoveDomain(t *testing.T) {
	list := []string{"a.com", "b.com", "c.com"}
	got, err := RemoveDomain(list, 1)
	if err != nil || !reflect.DeepEqual(got, []string{"a.com", "c.com"}) {
		t.Errorf("remove = %v, %v", got, err)
	}
	if _, err := RemoveDomain(list, 3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("out of range err = %v", err)
	}
	if _, err := RemoveDomain(list, -1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("negative index err = %v", err)
	}
}

func TestEffectiveUser(t *testing.T) {
	defaults := DefaultUserDomains()
	tests := []struct {
		name   string
		stored []string
		ok     bool
		want   []string
	}{
		{"never stored", nil, false, defaults},
		{"stored empty", []string{}, true, []string{}},
		{"valid", []string{"example.com"}, true, []string{"example.com"}},
		{"invalid entry", []string{"example.com", "??"}, true, defaults},
		{"system entry", []string{"neetcode.io"}, true, defaults},
		{"duplicate", []string{"a.com", "A.com"}, true, defaults},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveUser(tt.stored, tt.ok); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExclusionsAll(t *testing.T) {
	e := NewExclusions([]string{"example.com"})
	want := []string{"leetcode.com", "neetcode.io", "accounts.google.com", "example.com"}
	if !reflect.DeepEqual(e.All(), want) {
		t.Errorf("All = %v", e.All())
	}
	if e.Max != MaxUserDomains {
		t.Errorf("Max = %d", e.Max)
	}
}
