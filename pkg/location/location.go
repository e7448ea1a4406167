// Package location resolves free-text location strings supplied in tool
// arguments against a canonical list, tolerating typos via Levenshtein
// distance.
package location

import (
	"strings"

	"github.com/agext/levenshtein"
)

// Resolver holds the canonical location list loaded once at startup.
type Resolver struct {
	canonical []string
	lower     map[string]string // lowercase -> canonical, for exact match
}

// New builds a Resolver from the canonical list (e.g. loaded from
// LOCATIONS_PATH at startup).
func New(canonical []string) *Resolver {
	lower := make(map[string]string, len(canonical))
	for _, c := range canonical {
		lower[strings.ToLower(c)] = c
	}
	return &Resolver{canonical: canonical, lower: lower}
}

// threshold returns the maximum accepted edit distance for a token of the
// given length: min(3, floor(0.4*len)+1).
func threshold(length int) int {
	t := int(0.4*float64(length)) + 1
	if t > 3 {
		return 3
	}
	return t
}

// Resolve flattens comma-joined values, trims each token, and resolves it
// against the canonical list: exact case-insensitive match first, then
// nearest by Levenshtein distance if within threshold. Returns the
// deduplicated set of canonical names in first-seen order; unresolved
// tokens are dropped.
func (r *Resolver) Resolve(inputs []string) []string {
	var out []string
	seen := make(map[string]bool)

	for _, raw := range inputs {
		for _, token := range strings.Split(raw, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			name, ok := r.resolveOne(token)
			if !ok {
				continue
			}
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

func (r *Resolver) resolveOne(token string) (string, bool) {
	if name, ok := r.lower[strings.ToLower(token)]; ok {
		return name, true
	}

	best := ""
	bestDist := -1
	for _, candidate := range r.canonical {
		d := levenshtein.Distance(strings.ToLower(token), strings.ToLower(candidate), nil)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = candidate
		}
	}
	if best == "" {
		return "", false
	}
	if bestDist <= threshold(len(token)) {
		return best, true
	}
	return "", false
}
