package observer

import (
	"fmt"
	"sort"
	"strings"

	"omg/internal/model"
	"omg/internal/similarity"
	"omg/internal/store"
)

// RegenerateMoc reads every non-archived node whose resolved domain
// equals domain, orders them by Updated descending, and writes
// mocs/moc-<domain>.md as a wikilink list. When hubMinRefs > 0, link
// targets referenced by at least that many nodes in the domain are
// listed first under a "Hubs" section (the entity-hub-promotion
// enrichment described in SPEC_FULL.md).
func RegenerateMoc(gs *store.GraphStore, domain string, hubMinRefs int) error {
	all, err := gs.ListAllNodes()
	if err != nil {
		return err
	}

	var domainNodes []*model.Node
	linkRefCount := make(map[string]int)
	for _, n := range all {
		if similarity.ResolveDomain(n.Links, n.CanonicalKey) != domain {
			continue
		}
		domainNodes = append(domainNodes, n)
		for _, l := range n.Links {
			linkRefCount[l]++
		}
	}
	sort.Slice(domainNodes, func(i, j int) bool { return domainNodes[i].Updated > domainNodes[j].Updated })

	var hubs []string
	if hubMinRefs > 0 {
		for link, count := range linkRefCount {
			if count >= hubMinRefs {
				hubs = append(hubs, link)
			}
		}
		sort.Strings(hubs)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# moc-%s\n\n", domain)
	if len(hubs) > 0 {
		sb.WriteString("## Hubs\n\n")
		for _, h := range hubs {
			fmt.Fprintf(&sb, "- [[%s]]\n", h)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("## Nodes\n\n")
	for _, n := range domainNodes {
		fmt.Fprintf(&sb, "- [[%s]] — %s\n", n.ID, n.Description)
	}

	return writeMoc(gs, domain, sb.String())
}

func writeMoc(gs *store.GraphStore, domain, content string) error {
	return store.WriteMocFile(gs, domain, content)
}
