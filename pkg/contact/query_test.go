package contact

import (
	"strings"
	"testing"
)

func TestCompileEmptyFilterMatchesEverything(t *testing.T) {
	cond, err := Compile(nil, MatchAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cond.MatchEverything() {
		t.Fatalf("expected unconditional match, got %q", cond.SQL)
	}
}

func TestCompileContainsIsCaseInsensitive(t *testing.T) {
	cond, err := Compile([]Filter{{Field: "industry", Operator: "contains", Value: "tech"}}, MatchAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(cond.SQL, "industry ILIKE ?") {
		t.Fatalf("expected ILIKE condition, got %q", cond.SQL)
	}
	if len(cond.Args) != 1 || cond.Args[0] != "%tech%" {
		t.Fatalf("expected %%tech%% argument, got %v", cond.Args)
	}
}

func TestCompileMatchTypeJoins(t *testing.T) {
	filters := []Filter{
		{Field: "country", Operator: "equals", Value: "Germany"},
		{Field: "city", Operator: "startsWith", Value: "Ber"},
	}

	all, err := Compile(filters, MatchAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(all.SQL, " AND ") {
		t.Fatalf("expected AND join for matchType all, got %q", all.SQL)
	}

	any, err := Compile(filters, MatchAny)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(any.SQL, " OR ") {
		t.Fatalf("expected OR join for matchType any, got %q", any.SQL)
	}
}

func TestCompileEmptinessOperators(t *testing.T) {
	cond, err := Compile([]Filter{{Field: "phone", Operator: "isEmpty"}}, MatchAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(cond.SQL, "phone IS NULL OR phone = ''") {
		t.Fatalf("unexpected isEmpty condition: %q", cond.SQL)
	}

	cond, err = Compile([]Filter{{Field: "phone", Operator: "isNotEmpty"}}, MatchAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(cond.SQL, "phone IS NOT NULL AND phone <> ''") {
		t.Fatalf("unexpected isNotEmpty condition: %q", cond.SQL)
	}
}

func TestCompileNumericComparison(t *testing.T) {
	cond, err := Compile([]Filter{{Field: "confidence", Operator: "greaterThan", Value: "80"}}, MatchAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, ok := cond.Args[0].(float64); !ok || n != 80 {
		t.Fatalf("expected numeric argument 80, got %v", cond.Args[0])
	}
}

func TestCompileRejectsUnknownOperator(t *testing.T) {
	_, err := Compile([]Filter{{Field: "email", Operator: "regex", Value: ".*"}}, MatchAll)
	if err == nil {
		t.Fatal("expected error for unknown operator")
	}
}

func TestCompileRejectsUnknownField(t *testing.T) {
	_, err := Compile([]Filter{{Field: "email; DROP TABLE contacts", Operator: "equals", Value: "x"}}, MatchAll)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestSearchClauseExpandsSynonyms(t *testing.T) {
	cond := SearchClause(DefaultSynonyms(), "vp")
	if cond.MatchEverything() {
		t.Fatal("expected search condition")
	}

	found := false
	for _, arg := range cond.Args {
		if arg == "%vice president%" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected expanded vice president term in args, got %v", cond.Args)
	}
}

func TestAndSkipsEmptyConditions(t *testing.T) {
	explicit, err := Compile([]Filter{{Field: "industry", Operator: "contains", Value: "tech"}}, MatchAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	combined := And(explicit, Condition{})
	if combined.SQL != explicit.SQL {
		t.Fatalf("expected empty condition skipped, got %q", combined.SQL)
	}
}
