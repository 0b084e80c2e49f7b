package contact

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	MatchAll = "all"
	MatchAny = "any"
)

// Filter is one predicate of a contact query.
type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// FilterError marks a predicate the compiler rejected. Callers map it to a
// client error instead of a server fault.
type FilterError struct {
	msg string
}

func (e *FilterError) Error() string {
	return e.msg
}

// Condition is a compiled SQL fragment plus its bind arguments.
type Condition struct {
	SQL  string
	Args []interface{}
}

// MatchEverything reports whether the condition places no restriction.
func (c Condition) MatchEverything() bool {
	return c.SQL == ""
}

// Compile turns a predicate list into a single condition. Predicates combine
// with AND under MatchAll and OR under MatchAny; an empty list matches
// everything. Unknown fields and operators are rejected: filter columns are
// interpolated into SQL, so only the known field table is accepted.
func Compile(filters []Filter, matchType string) (Condition, error) {
	if len(filters) == 0 {
		return Condition{}, nil
	}

	parts := make([]string, 0, len(filters))
	var args []interface{}

	for _, f := range filters {
		column, ok := ColumnFor(f.Field)
		if !ok {
			return Condition{}, &FilterError{msg: fmt.Sprintf("unknown filter field %q", f.Field)}
		}

		switch f.Operator {
		case "equals":
			parts = append(parts, fmt.Sprintf("%s = ?", column))
			args = append(args, f.Value)
		case "contains":
			parts = append(parts, fmt.Sprintf("%s ILIKE ?", column))
			args = append(args, "%"+escapeLike(f.Value)+"%")
		case "startsWith":
			parts = append(parts, fmt.Sprintf("%s ILIKE ?", column))
			args = append(args, escapeLike(f.Value)+"%")
		case "endsWith":
			parts = append(parts, fmt.Sprintf("%s ILIKE ?", column))
			args = append(args, "%"+escapeLike(f.Value))
		case "greaterThan":
			parts = append(parts, fmt.Sprintf("%s > ?", column))
			args = append(args, comparableValue(f.Value))
		case "lessThan":
			parts = append(parts, fmt.Sprintf("%s < ?", column))
			args = append(args, comparableValue(f.Value))
		case "isEmpty":
			parts = append(parts, fmt.Sprintf("(%s IS NULL OR %s = '')", column, column))
		case "isNotEmpty":
			parts = append(parts, fmt.Sprintf("(%s IS NOT NULL AND %s <> '')", column, column))
		default:
			return Condition{}, &FilterError{msg: fmt.Sprintf("unknown filter operator %q", f.Operator)}
		}
	}

	joiner := " AND "
	if matchType == MatchAny {
		joiner = " OR "
	}
	return Condition{SQL: "(" + strings.Join(parts, joiner) + ")", Args: args}, nil
}

// SearchClause compiles a free-text search term into an OR over
// name/email/company plus synonym-expanded matches on job title, department
// and industry. Layered with AND on top of any explicit filters.
func SearchClause(catalog SynonymCatalog, term string) Condition {
	if strings.TrimSpace(term) == "" {
		return Condition{}
	}

	like := "%" + escapeLike(term) + "%"
	parts := []string{"email ILIKE ?", "first_name ILIKE ?", "last_name ILIKE ?", "company ILIKE ?"}
	args := []interface{}{like, like, like, like}

	expanded := map[string][]string{
		"job_title":  catalog.Expand("jobTitle", term),
		"department": catalog.Expand("department", term),
		"industry":   catalog.Expand("industry", term),
	}
	for _, column := range []string{"job_title", "department", "industry"} {
		for _, variant := range expanded[column] {
			parts = append(parts, fmt.Sprintf("%s ILIKE ?", column))
			args = append(args, "%"+escapeLike(variant)+"%")
		}
	}

	return Condition{SQL: "(" + strings.Join(parts, " OR ") + ")", Args: args}
}

// And combines conditions, skipping empty ones.
func And(conditions ...Condition) Condition {
	var parts []string
	var args []interface{}
	for _, c := range conditions {
		if c.MatchEverything() {
			continue
		}
		parts = append(parts, c.SQL)
		args = append(args, c.Args...)
	}
	if len(parts) == 0 {
		return Condition{}
	}
	return Condition{SQL: strings.Join(parts, " AND "), Args: args}
}

// comparableValue keeps numeric comparisons numeric; everything else
// compares lexically, matching the loose comparison of the source values.
func comparableValue(value string) interface{} {
	if n, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return n
	}
	return value
}

func escapeLike(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, "%", `\%`)
	return strings.ReplaceAll(value, "_", `\_`)
}
