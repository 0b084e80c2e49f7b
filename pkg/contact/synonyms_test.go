package contact

import "testing"

func TestExpandAlwaysKeepsInput(t *testing.T) {
	catalog := DefaultSynonyms()

	inputs := []struct{ field, value string }{
		{"jobTitle", "CEO"},
		{"jobTitle", "underwater basket weaver"},
		{"department", "Engineering"},
		{"industry", "tech"},
		{"seniority", "vp"},
		{"country", "France"},
	}
	for _, in := range inputs {
		terms := expandContains(catalog.Expand(in.field, in.value), in.value)
		if !terms {
			t.Fatalf("expansion of %s/%s dropped the original value", in.field, in.value)
		}
	}
}

func expandContains(terms []string, value string) bool {
	for _, term := range terms {
		if term == value {
			return true
		}
	}
	return false
}

func TestExpandDirectKeyHit(t *testing.T) {
	terms := DefaultSynonyms().Expand("jobTitle", "ceo")

	want := []string{"chief executive officer", "founder", "managing director"}
	for _, w := range want {
		if !expandContains(terms, w) {
			t.Fatalf("expected %q in expansion, got %v", w, terms)
		}
	}
}

func TestExpandSubstringMatch(t *testing.T) {
	terms := DefaultSynonyms().Expand("industry", "technology")

	// "technology" is a synonym of the "tech" key, so the whole group joins.
	if !expandContains(terms, "tech") || !expandContains(terms, "software") {
		t.Fatalf("expected synonym group for tech, got %v", terms)
	}
}

func TestExpandAbbreviationInitials(t *testing.T) {
	terms := DefaultSynonyms().Expand("seniority", "tl")

	// "tl" matches the initials of "team lead", a synonym of manager.
	if !expandContains(terms, "manager") {
		t.Fatalf("expected manager via initials match, got %v", terms)
	}
}

func TestExpandUnknownFieldPassesThrough(t *testing.T) {
	terms := DefaultSynonyms().Expand("country", "Germany")
	if len(terms) != 1 || terms[0] != "Germany" {
		t.Fatalf("expected passthrough for unknown field, got %v", terms)
	}
}

func TestExpandNoMatchReturnsSingleton(t *testing.T) {
	terms := DefaultSynonyms().Expand("jobTitle", "zoologist")
	if len(terms) != 1 || terms[0] != "zoologist" {
		t.Fatalf("expected singleton, got %v", terms)
	}
}

func TestLoadSynonymsDefaultOnEmptyPath(t *testing.T) {
	catalog, err := LoadSynonyms("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(catalog.Fields["jobTitle"]) == 0 {
		t.Fatal("expected built-in jobTitle table")
	}
}
