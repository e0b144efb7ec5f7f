package model

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontMatterDelim = "---"

// rawFrontMatter captures every known field; the YAML decoder ignores any
// other key, so unknown fields are stripped on read, per spec.md §4.1.
type rawFrontMatter struct {
	ID               string     `yaml:"id"`
	Type             string     `yaml:"type"`
	Description      string     `yaml:"description"`
	Priority         string     `yaml:"priority"`
	Created          string     `yaml:"created"`
	Updated          string     `yaml:"updated"`
	AppliesTo        *AppliesTo `yaml:"appliesTo,omitempty"`
	Sources          []Source   `yaml:"sources,omitempty"`
	Links            []string   `yaml:"links,omitempty"`
	Tags             []string   `yaml:"tags,omitempty"`
	Supersedes       []string   `yaml:"supersedes,omitempty"`
	CompressionLevel int        `yaml:"compressionLevel,omitempty"`
	Archived         bool       `yaml:"archived,omitempty"`
	CanonicalKey     string     `yaml:"canonicalKey,omitempty"`
	AliasKeys        []string   `yaml:"aliasKeys,omitempty"`
}

// ParseMarkdown splits a node file into front matter and body. Unknown
// front-matter fields are silently dropped (forward compatibility).
func ParseMarkdown(content string) (*Node, error) {
	trimmed := strings.TrimLeft(content, "\n")
	if !strings.HasPrefix(trimmed, frontMatterDelim) {
		return nil, fmt.Errorf("frontmatter: missing opening delimiter")
	}
	rest := trimmed[len(frontMatterDelim):]
	idx := strings.Index(rest, "\n"+frontMatterDelim)
	if idx < 0 {
		return nil, fmt.Errorf("frontmatter: missing closing delimiter")
	}
	yamlBlock := rest[:idx]
	body := rest[idx+len("\n"+frontMatterDelim):]
	body = strings.TrimPrefix(body, "\n")

	var raw rawFrontMatter
	if err := yaml.Unmarshal([]byte(yamlBlock), &raw); err != nil {
		return nil, fmt.Errorf("frontmatter: invalid yaml: %w", err)
	}

	n := &Node{
		ID:               raw.ID,
		Type:             NodeType(raw.Type),
		Description:      raw.Description,
		Priority:         Priority(raw.Priority),
		Created:          raw.Created,
		Updated:          raw.Updated,
		AppliesTo:        raw.AppliesTo,
		Sources:          raw.Sources,
		Links:            raw.Links,
		Tags:             raw.Tags,
		Supersedes:       raw.Supersedes,
		CompressionLevel: raw.CompressionLevel,
		Archived:         raw.Archived,
		CanonicalKey:     raw.CanonicalKey,
		AliasKeys:        raw.AliasKeys,
		Body:             body,
	}
	return n, nil
}

// RenderMarkdown serializes a node back to front-matter + body form.
func RenderMarkdown(n *Node) (string, error) {
	raw := rawFrontMatter{
		ID: n.ID, Type: string(n.Type), Description: n.Description,
		Priority: string(n.Priority), Created: n.Created, Updated: n.Updated,
		AppliesTo: n.AppliesTo, Sources: n.Sources, Links: n.Links, Tags: n.Tags,
		Supersedes: n.Supersedes, CompressionLevel: n.CompressionLevel,
		Archived: n.Archived, CanonicalKey: n.CanonicalKey, AliasKeys: n.AliasKeys,
	}
	yamlBytes, err := yaml.Marshal(&raw)
	if err != nil {
		return "", fmt.Errorf("frontmatter: marshal: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(frontMatterDelim)
	sb.WriteString("\n")
	sb.Write(yamlBytes)
	sb.WriteString(frontMatterDelim)
	sb.WriteString("\n")
	if n.Body != "" {
		sb.WriteString(n.Body)
		if !strings.HasSuffix(n.Body, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
