package bootstrap

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadMarkdownSources walks workspaceDir for .md files, excluding the
// memory/omg tree (the graph itself), and returns labeled entries sorted
// by label.
func ReadMarkdownSources(workspaceDir string) ([]SourceEntry, error) {
	var entries []SourceEntry
	err := filepath.WalkDir(workspaceDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, _ := filepath.Rel(workspaceDir, path)
		if strings.HasPrefix(filepath.ToSlash(rel), "memory/omg/") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		entries = append(entries, SourceEntry{Label: rel, Text: string(data)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Label < entries[j].Label })
	return entries, nil
}
