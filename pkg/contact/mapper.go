package contact

import (
	"sort"
	"strings"
)

// MappingEntry binds one source column to a system field.
type MappingEntry struct {
	Source string `json:"source"`
	Field  string `json:"field"`
}

// Mapping is an ordered set of source-to-field bindings. Order is preserved
// through JSON so that duplicate bindings resolve deterministically.
type Mapping []MappingEntry

// FieldFor returns the system field a source column is bound to.
func (m Mapping) FieldFor(source string) (string, bool) {
	for _, e := range m {
		if e.Source == source {
			return e.Field, true
		}
	}
	return "", false
}

// Sources returns the source columns bound to a system field, in order.
func (m Mapping) Sources(field string) []string {
	var out []string
	for _, e := range m {
		if e.Field == field {
			out = append(out, e.Source)
		}
	}
	return out
}

// ProposeMapping proposes a best-effort assignment of source columns onto
// system fields. Four passes run in escalating looseness: exact id/label
// match, alias match, alias substring match, and fuzzy match with all
// non-alphanumeric characters stripped. A system field is claimed at most
// once and a claim is never revisited. Source columns that look like an
// email column are tried first so the one required field cannot be starved
// by a loose match elsewhere.
func ProposeMapping(sourceFields []string) Mapping {
	prioritized := make([]string, len(sourceFields))
	copy(prioritized, sourceFields)
	sort.SliceStable(prioritized, func(i, j int) bool {
		return strings.Contains(strings.ToLower(prioritized[i]), "email") &&
			!strings.Contains(strings.ToLower(prioritized[j]), "email")
	})

	assigned := make(map[string]string)
	claimed := make(map[string]bool)

	// Pass 1: exact match on system field id or label.
	for _, source := range prioritized {
		if _, ok := assigned[source]; ok {
			continue
		}
		normalized := strings.ToLower(strings.TrimSpace(source))
		for _, sys := range systemFields {
			if claimed[sys.ID] {
				continue
			}
			if strings.ToLower(sys.ID) == normalized || strings.ToLower(sys.Label) == normalized {
				assigned[source] = sys.ID
				claimed[sys.ID] = true
				break
			}
		}
	}

	// Pass 2: exact match against alias spellings.
	for _, source := range prioritized {
		if _, ok := assigned[source]; ok {
			continue
		}
		normalized := strings.ToLower(strings.TrimSpace(source))
		for _, fa := range fieldVariations {
			if claimed[fa.ID] {
				continue
			}
			if containsString(fa.Aliases, normalized) {
				assigned[source] = fa.ID
				claimed[fa.ID] = true
				break
			}
		}
	}

	// Pass 3: substring match against alias spellings, either direction.
	for _, source := range prioritized {
		if _, ok := assigned[source]; ok {
			continue
		}
		normalized := strings.ToLower(strings.TrimSpace(source))
		for _, fa := range fieldVariations {
			if claimed[fa.ID] {
				continue
			}
			matched := false
			for _, alias := range fa.Aliases {
				if strings.Contains(normalized, alias) || strings.Contains(alias, normalized) {
					matched = true
					break
				}
			}
			if matched {
				assigned[source] = fa.ID
				claimed[fa.ID] = true
				break
			}
		}
	}

	// Pass 4: fuzzy match with non-alphanumerics stripped.
	for _, source := range prioritized {
		if _, ok := assigned[source]; ok {
			continue
		}
		clean := stripNonAlnum(strings.ToLower(strings.TrimSpace(source)))
		if clean == "" {
			continue
		}
		for _, sys := range systemFields {
			if claimed[sys.ID] {
				continue
			}
			cleanSys := stripNonAlnum(strings.ToLower(sys.ID))
			if clean == cleanSys || strings.Contains(clean, cleanSys) || strings.Contains(cleanSys, clean) {
				assigned[source] = sys.ID
				claimed[sys.ID] = true
				break
			}
		}
	}

	mapping := make(Mapping, 0, len(assigned))
	for _, source := range prioritized {
		if field, ok := assigned[source]; ok {
			mapping = append(mapping, MappingEntry{Source: source, Field: field})
		}
	}
	return mapping
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}

func stripNonAlnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
