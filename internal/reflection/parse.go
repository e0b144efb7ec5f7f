package reflection

import (
	"regexp"
	"strings"

	"omg/internal/logging"
)

// ReflectionNodeSpec is one new compressed node the oracle asked to be
// written.
type ReflectionNodeSpec struct {
	CanonicalKey string
	Description  string
	Body         string
	MocHints     []string
	Tags         []string
	Links        []string
}

// NodePatch is a targeted update to an existing node.
type NodePatch struct {
	ID          string
	Description string
	Tags        []string
	Links       []string
}

// Result is the parser's never-throws output for one cluster's oracle
// response.
type Result struct {
	ReflectionNodes []ReflectionNodeSpec
	ArchiveNodes    []string
	MocUpdates      []string
	NodeUpdates     []NodePatch
}

var (
	reflectionBlockRe = regexp.MustCompile(`(?s)<reflection[^>]*>(.*?)</reflection>`)
	reflectionNodeRe  = regexp.MustCompile(`(?s)<reflection-node>(.*?)</reflection-node>`)
	archiveIDRe       = regexp.MustCompile(`(?s)<archive-nodes>(.*?)</archive-nodes>`)
	archiveEntryRe    = regexp.MustCompile(`(?s)<id>(.*?)</id>`)
	mocUpdatesRe      = regexp.MustCompile(`(?s)<moc-updates>(.*?)</moc-updates>`)
	domainEntryRe     = regexp.MustCompile(`(?s)<domain>(.*?)</domain>`)
	nodeUpdatesRe     = regexp.MustCompile(`(?s)<node-updates>(.*?)</node-updates>`)
	nodeUpdateRe      = regexp.MustCompile(`(?s)<node-update>(.*?)</node-update>`)
)

func extractTag(block, tag string) (string, bool) {
	re := regexp.MustCompile(`(?s)<` + tag + `>(.*?)</` + tag + `>`)
	m := re.FindStringSubmatch(block)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stripFences(raw string) string {
	if idx := strings.Index(raw, "```"); idx >= 0 {
		rest := raw[idx+3:]
		rest = strings.TrimPrefix(rest, "xml")
		rest = strings.TrimPrefix(rest, "\n")
		if end := strings.LastIndex(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		return rest
	}
	return raw
}

// Parse extracts a cluster's reflection outcome from a free-form oracle
// response. It never errors: on any parse failure or missing root it
// returns an empty Result, per spec.md §4.8 step 7.
func Parse(raw string) Result {
	log := logging.Get(logging.CategoryReflection)
	text := stripFences(raw)

	rootMatch := reflectionBlockRe.FindStringSubmatch(text)
	if rootMatch == nil {
		log.Debug("reflection parse: no <reflection> root found")
		return Result{}
	}
	root := rootMatch[1]

	var result Result

	for _, m := range reflectionNodeRe.FindAllStringSubmatch(root, -1) {
		body := m[1]
		canonicalKey, _ := extractTag(body, "canonical-key")
		description, _ := extractTag(body, "description")
		content, _ := extractTag(body, "content")
		mocHintsRaw, _ := extractTag(body, "moc-hints")
		tagsRaw, _ := extractTag(body, "tags")
		linksRaw, _ := extractTag(body, "links")

		if canonicalKey == "" || description == "" {
			log.Warn("reflection parse: dropping reflection-node with missing canonical-key or description")
			continue
		}

		result.ReflectionNodes = append(result.ReflectionNodes, ReflectionNodeSpec{
			CanonicalKey: canonicalKey,
			Description:  description,
			Body:         content,
			MocHints:     splitList(mocHintsRaw),
			Tags:         splitList(tagsRaw),
			Links:        splitList(linksRaw),
		})
	}

	if m := archiveIDRe.FindStringSubmatch(root); m != nil {
		for _, e := range archiveEntryRe.FindAllStringSubmatch(m[1], -1) {
			if id := strings.TrimSpace(e[1]); id != "" {
				result.ArchiveNodes = append(result.ArchiveNodes, id)
			}
		}
	}

	if m := mocUpdatesRe.FindStringSubmatch(root); m != nil {
		for _, e := range domainEntryRe.FindAllStringSubmatch(m[1], -1) {
			if d := strings.TrimSpace(e[1]); d != "" {
				result.MocUpdates = append(result.MocUpdates, d)
			}
		}
	}

	if m := nodeUpdatesRe.FindStringSubmatch(root); m != nil {
		for _, nu := range nodeUpdateRe.FindAllStringSubmatch(m[1], -1) {
			body := nu[1]
			id, _ := extractTag(body, "id")
			if id == "" {
				log.Warn("reflection parse: dropping node-update with missing id")
				continue
			}
			description, _ := extractTag(body, "description")
			tagsRaw, _ := extractTag(body, "tags")
			linksRaw, _ := extractTag(body, "links")
			result.NodeUpdates = append(result.NodeUpdates, NodePatch{
				ID:          id,
				Description: description,
				Tags:        splitList(tagsRaw),
				Links:       splitList(linksRaw),
			})
		}
	}

	return result
}
