package store

import "path/filepath"

// WriteNowFile atomically replaces now.md with new content, per spec.md §4.5.
func WriteNowFile(gs *GraphStore, content string) error {
	return atomicWrite(filepath.Join(gs.root, "now.md"), []byte(content))
}

// WriteMocFile atomically writes mocs/moc-<domain>.md.
func WriteMocFile(gs *GraphStore, domain, content string) error {
	path, err := mocFilePath(gs.root, domain)
	if err != nil {
		return err
	}
	return atomicWrite(path, []byte(content))
}
