// Package observer parses an oracle response wrapping <observations> XML
// into upsert operations and applies them to the graph store, per
// spec.md §4.5.
package observer

import (
	"regexp"
	"strings"

	"omg/internal/logging"
	"omg/internal/model"
)

// Operation is a single accepted upsert derived from an <operation> block.
type Operation struct {
	CanonicalKey string
	Type         model.NodeType
	Description  string
	Priority     model.Priority
	Body         string
	MocHints     []string
	Tags         []string
	Links        []string
}

// ParseResult is the parser's never-throws output.
type ParseResult struct {
	Upserts      []Operation
	MocUpdates   []string
	NowUpdate    *string
	DroppedCount int
}

var (
	observationsBlockRe = regexp.MustCompile(`(?s)<observations[^>]*>(.*?)</observations>`)
	operationBlockRe    = regexp.MustCompile(`(?s)<operation\s+([^>]*)>(.*?)</operation>`)
	operationAttrRe     = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)
	nowUpdateRe         = regexp.MustCompile(`(?s)<now-update>(.*?)</now-update>`)
	fieldRe             = regexp.MustCompile
)

func field(block, tag string) (string, bool) {
	re := fieldRe(`(?s)<` + tag + `>(.*?)</` + tag + `>`)
	m := re.FindStringSubmatch(block)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func splitCommaList(s string) []string {
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

// stripFences removes a single leading ```xml / ```-style fence and its
// closing fence, tolerating preamble text before the fence.
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

// Parse extracts upsert operations from a free-form oracle response. It
// never errors: on any parse failure or missing root it returns an empty
// ParseResult, per spec.md §4.5.
func Parse(raw string) ParseResult {
	log := logging.Get(logging.CategoryObserver)
	text := stripFences(raw)

	rootMatch := observationsBlockRe.FindStringSubmatch(text)
	if rootMatch == nil {
		log.Debug("parse: no <observations> root found")
		return ParseResult{}
	}
	root := rootMatch[1]

	result := ParseResult{}
	mocSeen := make(map[string]bool)

	for _, opMatch := range operationBlockRe.FindAllStringSubmatch(root, -1) {
		attrsRaw, body := opMatch[1], opMatch[2]
		attrs := make(map[string]string)
		for _, am := range operationAttrRe.FindAllStringSubmatch(attrsRaw, -1) {
			attrs[am[1]] = am[2]
		}

		canonicalKey, _ := field(body, "canonical-key")
		description, _ := field(body, "description")
		content, _ := field(body, "content")
		mocHintsRaw, _ := field(body, "moc-hints")
		tagsRaw, _ := field(body, "tags")
		linksRaw, _ := field(body, "links")

		typ := model.NodeType(attrs["type"])
		priority := model.Priority(attrs["priority"])

		if canonicalKey == "" {
			log.Warn("parse: dropping operation with empty canonical-key")
			result.DroppedCount++
			continue
		}
		if !model.IsValidType(typ) {
			log.Warn("parse: dropping operation with unknown type %q", attrs["type"])
			result.DroppedCount++
			continue
		}
		if description == "" {
			log.Warn("parse: dropping operation %q with empty description", canonicalKey)
			result.DroppedCount++
			continue
		}
		if priority == "" || !model.IsValidPriority(priority) {
			log.Warn("parse: operation %q has unknown priority %q, defaulting to medium", canonicalKey, attrs["priority"])
			priority = model.PriorityMedium
		}

		op := Operation{
			CanonicalKey: canonicalKey,
			Type:         typ,
			Description:  description,
			Priority:     priority,
			Body:         content,
			MocHints:     splitCommaList(mocHintsRaw),
			Tags:         splitCommaList(tagsRaw),
			Links:        splitCommaList(linksRaw),
		}
		result.Upserts = append(result.Upserts, op)

		for _, h := range op.MocHints {
			if !mocSeen[h] {
				mocSeen[h] = true
				result.MocUpdates = append(result.MocUpdates, h)
			}
		}
	}

	if m := nowUpdateRe.FindStringSubmatch(root); m != nil {
		trimmed := strings.TrimSpace(m[1])
		result.NowUpdate = &trimmed
	}

	return result
}
