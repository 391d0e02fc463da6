package urlutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestKeyFullQuery(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"http://example.com/index.php?id=1":   "http://example.com/index.php?id=1",
		"HTTP://EXAMPLE.com/index.php?id=1":   "http://example.com/index.php?id=1",
		"https://Example.com:8080/a?x=1#frag": "https://example.com:8080/a?x=1",
		"http://example.com/CaseSensitive":    "http://example.com/CaseSensitive",
		" http://example.com/x ":              "http://example.com/x",
		"not a url":                           "not a url",
		"":                                    "",
	}
	for input, expected := range cases {
		input, expected := input, expected
		name := input
		if name == "" {
			name = "empty"
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := Key(input, PolicyFullQuery); got != expected {
				t.Fatalf("Key(%q) = %q, want %q", input, got, expected)
			}
		})
	}
}

func TestKeyPathOnly(t *testing.T) {
	t.Parallel()

	a := Key("http://example.com/page.php?id=1", PolicyPathOnly)
	b := Key("http://example.com/page.php?id=2", PolicyPathOnly)
	if a != b {
		t.Fatalf("pathonly keys should match: %q vs %q", a, b)
	}
	if a != "http://example.com/page.php" {
		t.Fatalf("unexpected pathonly key: %q", a)
	}
}

func TestKeyIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"HTTP://EXAMPLE.com/Index.php?id=1",
		"https://example.com:443/a/b?x=y&z=w",
		"http://example.com/plain",
	}
	for _, in := range inputs {
		for _, policy := range []DedupPolicy{PolicyFullQuery, PolicyPathOnly} {
			once := Key(in, policy)
			twice := Key(once, policy)
			if once != twice {
				t.Fatalf("Key not idempotent for %q (%s): %q != %q", in, policy, once, twice)
			}
		}
	}
}

func TestDedupeFirstWins(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"http://EXAMPLE.com/x?id=1",
		"http://example.com/x?id=1", // mismo key, gana la primera forma
		"http://example.com/y?id=2",
		"",
		"http://example.com/x?id=1",
	}
	got := Dedupe(inputs, PolicyFullQuery)
	want := []string{
		"http://EXAMPLE.com/x?id=1",
		"http://example.com/y?id=2",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected dedupe output (-want +got):\n%s", diff)
	}
}

func TestDedupePolicyChangesIdentity(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"http://example.com/p?id=1",
		"http://example.com/p?id=2",
	}

	full := Dedupe(inputs, PolicyFullQuery)
	if len(full) != 2 {
		t.Fatalf("fullquery should keep both, got %v", full)
	}

	pathOnly := Dedupe(inputs, PolicyPathOnly)
	want := []string{"http://example.com/p?id=1"}
	if diff := cmp.Diff(want, pathOnly); diff != "" {
		t.Fatalf("unexpected pathonly output (-want +got):\n%s", diff)
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	if p, err := ParsePolicy(""); err != nil || p != PolicyFullQuery {
		t.Fatalf("ParsePolicy(\"\") = %v, %v", p, err)
	}
	if p, err := ParsePolicy("PathOnly"); err != nil || p != PolicyPathOnly {
		t.Fatalf("ParsePolicy(PathOnly) = %v, %v", p, err)
	}
	if _, err := ParsePolicy("bogus"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
