package listing

import "strings"

// MaxTerms is the marketplace cap on tags and materials per listing.
const MaxTerms = 13

// genericTagPool pads sparse tag lists so listings always carry the full 13
// tags the marketplace search index rewards. Appended in order, never
// duplicating a tag already present.
var genericTagPool = []string{
	"handmade",
	"wallart",
	"homedecor",
	"canvasart",
	"artprint",
	"walldecor",
	"modernart",
	"giftidea",
	"livingroom",
	"artwork",
	"decoration",
	"interiordesign",
	"custommade",
}

// SanitizeTerms normalizes a tag or material list: entries are trimmed,
// lowercased and stripped of non-alphanumeric characters, entries outside
// 2-20 characters are dropped, duplicates removed, and the list capped at
// MaxTerms. Input order is preserved.
func SanitizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		clean := normalizeTerm(t)
		if len(clean) < 2 || len(clean) > 20 {
			continue
		}
		if _, dup := seen[clean]; dup {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
		if len(out) == MaxTerms {
			break
		}
	}
	return out
}

// SanitizeTags sanitizes tags and pads the result from the generic pool
// until it reaches MaxTerms or the pool is exhausted.
func SanitizeTags(tags []string) []string {
	out := SanitizeTerms(tags)
	if len(out) >= MaxTerms {
		return out
	}
	seen := make(map[string]struct{}, len(out))
	for _, t := range out {
		seen[t] = struct{}{}
	}
	for _, t := range genericTagPool {
		if len(out) == MaxTerms {
			break
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func normalizeTerm(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	var b strings.Builder
	b.Grow(len(t))
	for _, r := range t {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
