package contact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SynonymCatalog maps search terms on professional-profile fields to
// equivalent phrasings. Keyed first by field id, then by canonical term.
type SynonymCatalog struct {
	Fields map[string]map[string][]string `yaml:"fields" json:"fields"`
}

// LoadSynonyms reads a catalog override from disk; an empty path yields the
// built-in catalog.
func LoadSynonyms(path string) (SynonymCatalog, error) {
	if path == "" {
		return DefaultSynonyms(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultSynonyms(), err
	}
	var cat SynonymCatalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return SynonymCatalog{}, err
	}
	if len(cat.Fields) == 0 {
		return SynonymCatalog{}, fmt.Errorf("synonym catalog empty")
	}
	return cat, nil
}

// Expand enriches a filter/search term into the set of equivalent phrasings
// for the given field. The literal input value is always part of the result.
// Terms of three characters or fewer additionally match the initials of
// multi-word entries when nothing else hit. Fields without a synonym table
// pass through unchanged.
func (c SynonymCatalog) Expand(field, value string) []string {
	table, ok := c.Fields[field]
	if !ok || len(table) == 0 {
		return []string{value}
	}

	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return []string{value}
	}

	results := newTermSet(value)

	// Direct key hit takes the whole synonym group.
	if synonyms, ok := table[normalized]; ok {
		results.add(normalized)
		results.addAll(synonyms)
		return results.slice()
	}

	for _, key := range sortedKeys(table) {
		synonyms := table[key]
		if strings.Contains(key, normalized) || strings.Contains(normalized, key) {
			results.add(key)
			results.addAll(synonyms)
			continue
		}
		for _, synonym := range synonyms {
			if synonym == normalized || strings.Contains(synonym, normalized) || strings.Contains(normalized, synonym) {
				results.add(key)
				results.addAll(synonyms)
				break
			}
		}
	}

	// Short terms with no direct hit are likely abbreviations; match them
	// against the initials of multi-word keys and synonyms.
	if results.len() == 1 && len(normalized) <= 3 {
		for _, key := range sortedKeys(table) {
			synonyms := table[key]
			if initials(key) == normalized {
				results.add(key)
				results.addAll(synonyms)
			}
			for _, synonym := range synonyms {
				if initials(synonym) == normalized {
					results.add(key)
					results.addAll(synonyms)
					break
				}
			}
		}
	}

	if results.len() > 1 {
		return results.slice()
	}
	return []string{value}
}

// initials builds the lowercase first-letter abbreviation of a multi-word
// phrase; single words yield "".
func initials(phrase string) string {
	words := strings.Fields(phrase)
	if len(words) < 2 {
		return ""
	}
	var b strings.Builder
	for _, w := range words {
		b.WriteByte(w[0])
	}
	return strings.ToLower(b.String())
}

func sortedKeys(table map[string][]string) []string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// termSet is an insertion-ordered string set.
type termSet struct {
	seen  map[string]bool
	terms []string
}

func newTermSet(initial string) *termSet {
	s := &termSet{seen: make(map[string]bool)}
	s.add(initial)
	return s
}

func (s *termSet) add(term string) {
	if !s.seen[term] {
		s.seen[term] = true
		s.terms = append(s.terms, term)
	}
}

func (s *termSet) addAll(terms []string) {
	for _, t := range terms {
		s.add(t)
	}
}

func (s *termSet) len() int { return len(s.terms) }

func (s *termSet) slice() []string { return s.terms }

// DefaultSynonyms is the compiled-in catalog covering job title, department,
// seniority and industry.
func DefaultSynonyms() SynonymCatalog {
	return SynonymCatalog{Fields: map[string]map[string][]string{
		"jobTitle": {
			"ceo":                 {"chief executive officer", "founder", "co-founder", "president", "owner", "managing director"},
			"cto":                 {"chief technology officer", "vp of technology", "vp of engineering", "head of technology", "head of engineering"},
			"cfo":                 {"chief financial officer", "vp of finance", "head of finance", "finance director", "financial controller"},
			"cmo":                 {"chief marketing officer", "vp of marketing", "head of marketing", "marketing director"},
			"coo":                 {"chief operating officer", "vp of operations", "head of operations", "operations director"},
			"vp":                  {"vice president", "vice-president", "senior director", "executive director"},
			"director":            {"head of", "lead", "senior manager"},
			"engineer":            {"developer", "programmer", "coder", "software engineer", "software developer"},
			"engineering manager": {"dev manager", "development manager", "engineering lead", "tech lead"},
			"sales":               {"account executive", "business development", "sales representative", "account manager"},
			"marketing":           {"brand", "growth", "communication", "digital marketing"},
			"hr":                  {"human resources", "people operations", "talent", "recruitment"},
		},
		"department": {
			"engineering": {"development", "r&d", "tech", "product development", "it"},
			"marketing":   {"communications", "brand", "growth", "digital marketing"},
			"sales":       {"business development", "revenue", "account management"},
			"finance":     {"accounting", "financial", "treasury"},
			"hr":          {"human resources", "people", "people operations", "talent", "recruitment"},
			"product":     {"product management", "product development", "ux", "design"},
			"operations":  {"administration", "logistics", "support", "customer service"},
		},
		"seniority": {
			"c-level":   {"executive", "cxo", "chief"},
			"executive": {"c-level", "cxo", "chief", "president"},
			"vp":        {"vice president", "vice-president", "senior director"},
			"director":  {"senior manager", "head of", "lead"},
			"manager":   {"team lead", "supervisor"},
			"senior":    {"sr", "lead", "principal", "staff"},
			"mid-level": {"intermediate", "associate"},
			"junior":    {"entry level", "associate", "jr"},
		},
		"industry": {
			"tech":           {"technology", "software", "information technology", "it", "saas", "cloud", "computer", "digital"},
			"finance":        {"financial services", "banking", "investment", "insurance", "fintech"},
			"healthcare":     {"health", "medical", "pharma", "pharmaceutical", "biotech", "life sciences"},
			"retail":         {"e-commerce", "ecommerce", "consumer goods", "shopping", "marketplace"},
			"manufacturing":  {"production", "industrial", "factory", "fabrication"},
			"media":          {"entertainment", "publishing", "news", "marketing", "advertising"},
			"education":      {"edtech", "learning", "academic", "training", "schools", "university"},
			"consulting":     {"professional services", "business services", "advisory"},
			"real estate":    {"property", "construction", "housing", "architecture"},
			"energy":         {"oil", "gas", "utilities", "renewable", "power", "electricity"},
			"transportation": {"logistics", "shipping", "supply chain", "delivery"},
			"hospitality":    {"travel", "tourism", "hotel", "restaurant", "food service"},
		},
	}}
}
