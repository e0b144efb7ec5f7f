package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"omg/internal/logging"
	"omg/internal/model"
)

var scaffoldTypeDirs = []model.NodeType{
	model.TypeIdentity, model.TypePreference, model.TypeProject, model.TypeDecision,
	model.TypeFact, model.TypeEpisode, model.TypeReflection,
}

// ScaffoldIfNeeded idempotently creates the directory tree and template
// seed files. It returns immediately (no error, no writes) if index.md
// already exists.
func ScaffoldIfNeeded(workspaceDir string) (string, error) {
	root := filepath.Join(workspaceDir, "memory", "omg")
	indexPath := filepath.Join(root, "index.md")
	if _, err := os.Stat(indexPath); err == nil {
		return root, nil
	}

	for _, t := range scaffoldTypeDirs {
		if err := os.MkdirAll(nodesDir(root, t), 0o755); err != nil {
			return "", fmt.Errorf("scaffold: mkdir %s: %w", t, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "mocs"), 0o755); err != nil {
		return "", fmt.Errorf("scaffold: mkdir mocs: %w", err)
	}

	if err := atomicWrite(filepath.Join(root, "now.md"), []byte("# now\n\n_(nothing recorded yet)_\n")); err != nil {
		return "", err
	}
	if err := atomicWrite(indexPath, []byte("# index\n\n_(no MOCs yet)_\n")); err != nil {
		return "", err
	}
	logging.Get(logging.CategoryStore).Info("scaffolded new graph at %s", root)
	return root, nil
}

// RegenerateIndex rewrites index.md with a sorted wikilink list of every
// MOC file present under mocs/.
func (gs *GraphStore) RegenerateIndex(nodeCount int) error {
	mocsDir := filepath.Join(gs.root, "mocs")
	entries, err := os.ReadDir(mocsDir)
	if err != nil {
		if os.IsNotExist(err) {
			entries = nil
		} else {
			return fmt.Errorf("store: regenerate index: %w", err)
		}
	}

	var domains []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".md") || !strings.HasPrefix(name, "moc-") {
			continue
		}
		domain := strings.TrimSuffix(strings.TrimPrefix(name, "moc-"), ".md")
		domains = append(domains, domain)
	}
	sort.Strings(domains)

	var sb strings.Builder
	sb.WriteString("# index\n\n")
	fmt.Fprintf(&sb, "_%d nodes across %d domains_\n\n", nodeCount, len(domains))
	for _, d := range domains {
		fmt.Fprintf(&sb, "- [[moc-%s]]\n", d)
	}
	return atomicWrite(filepath.Join(gs.root, "index.md"), []byte(sb.String()))
}
