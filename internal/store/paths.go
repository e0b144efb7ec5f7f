package store

import (
	"fmt"
	"path/filepath"
	"strings"

	"omg/internal/model"
)

// validateComponent rejects path separators and parent-directory traversal
// in any user-controlled path fragment (sessionKey, domain, filename).
func validateComponent(name, field string) error {
	if name == "" {
		return fmt.Errorf("store: %s must not be empty", field)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("store: %s must not contain '..'", field)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("store: %s must not contain path separators", field)
	}
	return nil
}

func nodesDir(root string, t model.NodeType) string {
	return filepath.Join(root, "nodes", string(t))
}

func slugFromID(id string) string {
	parts := strings.Split(id, "/")
	return parts[len(parts)-1]
}

// nodeFilePath builds the canonical path for a freshly created node:
// omgRoot/nodes/<type>/<slug>-<date>.md
func nodeFilePath(root string, t model.NodeType, slug, date string) (string, error) {
	if err := validateComponent(slug, "filename"); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s-%s.md", slug, date)
	if err := validateComponent(filename, "filename"); err != nil {
		return "", err
	}
	return filepath.Join(nodesDir(root, t), filename), nil
}

func mocFilePath(root, domain string) (string, error) {
	if err := validateComponent(domain, "domain"); err != nil {
		return "", err
	}
	return filepath.Join(root, "mocs", fmt.Sprintf("moc-%s.md", domain)), nil
}
