package reflection

import (
	"strings"

	"omg/internal/model"
)

// CompactPacket is the size-bounded representation of a node sent to
// the reflection oracle, per spec.md glossary.
type CompactPacket struct {
	ID            string   `json:"id"`
	CanonicalKey  string   `json:"canonicalKey"`
	Description   string   `json:"description"`
	BodyLines     []string `json:"bodyLines,omitempty"`
	RecentUpdates []string `json:"recentUpdates,omitempty"`
	Links         []string `json:"links,omitempty"`
}

const (
	maxBodyLines     = 10
	maxRecentUpdates = 3
	maxPacketLinks   = 5
)

// BuildPacket compresses a node into its compact packet form.
func BuildPacket(n *model.Node) CompactPacket {
	key := n.CanonicalKey
	if key == "" {
		key = n.ID
	}

	p := CompactPacket{
		ID:            n.ID,
		CanonicalKey:  key,
		Description:   n.Description,
		BodyLines:     firstNonBlankLines(n.Body, maxBodyLines),
		RecentUpdates: recentUpdateBullets(n.Body, maxRecentUpdates),
	}
	if len(n.Links) > maxPacketLinks {
		p.Links = append([]string(nil), n.Links[:maxPacketLinks]...)
	} else {
		p.Links = n.Links
	}
	return p
}

func firstNonBlankLines(body string, limit int) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == "## Updates" {
			break
		}
		out = append(out, trimmed)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// recentUpdateBullets returns the last `limit` bullet lines under a
// "## Updates" heading, in original (oldest-first) order.
func recentUpdateBullets(body string, limit int) []string {
	idx := strings.Index(body, "## Updates")
	if idx < 0 {
		return nil
	}
	section := body[idx+len("## Updates"):]

	var bullets []string
	for _, line := range strings.Split(section, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") {
			bullets = append(bullets, trimmed)
		}
	}
	if len(bullets) > limit {
		bullets = bullets[len(bullets)-limit:]
	}
	return bullets
}
