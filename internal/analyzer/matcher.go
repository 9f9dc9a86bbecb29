package analyzer

import "strings"

// Matcher tests page text against search terms. Matching is a plain,
// case-sensitive substring test; the first configured term that occurs
// wins.
type Matcher struct {
	terms []string
}

// NewMatcher keeps terms in the given order, dropping empty strings and
// duplicates. An empty term would match every page.
func NewMatcher(terms []string) *Matcher {
	seen := make(map[string]struct{}, len(terms))
	kept := make([]string, 0, len(terms))
	for _, term := range terms {
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		kept = append(kept, term)
	}
	return &Matcher{terms: kept}
}

// FirstMatch returns the first term contained in content.
func (m *Matcher) FirstMatch(content string) (string, bool) {
	for _, term := range m.terms {
		if strings.Contains(content, term) {
			return term, true
		}
	}
	return "", false
}

// Terms returns the effective term list.
func (m *Matcher) Terms() []string {
	out := make([]string, len(m.terms))
	copy(out, m.terms)
	return out
}
