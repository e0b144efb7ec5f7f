package similarity

import "strings"

// CombinedSimilarity weights canonical-key trigram similarity higher than
// description token-set similarity, because keys are more stable than
// free-text descriptions (spec.md §4.4).
func CombinedSimilarity(descA, descB, keyA, keyB string) float64 {
	return 0.4*TokenSetJaccard(descA, descB) + 0.6*TrigramJaccard(keyA, keyB)
}

// KeyPrefix returns the substring before the first '.', the whole string
// if there is no '.', or "" for an empty key.
func KeyPrefix(key string) string {
	if key == "" {
		return ""
	}
	if i := strings.IndexByte(key, '.'); i >= 0 {
		return key[:i]
	}
	return key
}

var keyPrefixToDomain = map[string]string{
	"identity":    "identity",
	"identities":  "identity",
	"preference":  "preferences",
	"preferences": "preferences",
	"project":     "projects",
	"projects":    "projects",
	"decision":    "decisions",
	"decisions":   "decisions",
}

const defaultDomain = "misc"

// ResolveDomain assigns a node to its domain using, in order: (1) the
// first link matching "omg/moc-<d>", (2) the key-prefix mapping above,
// (3) the default "misc" domain.
func ResolveDomain(links []string, canonicalKey string) string {
	for _, link := range links {
		if d, ok := domainFromMocLink(link); ok {
			return d
		}
	}
	prefix := KeyPrefix(canonicalKey)
	if d, ok := keyPrefixToDomain[prefix]; ok {
		return d
	}
	return defaultDomain
}

func domainFromMocLink(link string) (string, bool) {
	const marker = "omg/moc-"
	idx := strings.Index(link, marker)
	if idx < 0 {
		return "", false
	}
	rest := link[idx+len(marker):]
	if rest == "" {
		return "", false
	}
	return rest, true
}
