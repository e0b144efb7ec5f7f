// Package store implements the Graph Store: the sole owner of writes to
// omgRoot — node files, the registry index, directory scaffolding, and the
// index/MOC files. All mutation is serialized through a FIFO queue of
// single-caller critical sections, per spec.md §4.1 and §9.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"omg/internal/logging"
	"omg/internal/model"
)

const registryFileName = ".registry.json"

// GraphStore owns every read/write against a single omgRoot directory.
type GraphStore struct {
	root     string
	jobs     chan func()
	registry map[string]model.RegistryEntry
}

// NewGraphStore opens (without scaffolding) the graph store rooted at
// root, loading the registry if present.
func NewGraphStore(root string) (*GraphStore, error) {
	gs := &GraphStore{
		root:     root,
		jobs:     make(chan func(), 128),
		registry: make(map[string]model.RegistryEntry),
	}
	go gs.loop()
	if err := gs.submit(func() error { return gs.loadRegistryLocked() }); err != nil {
		return nil, err
	}
	return gs, nil
}

func (gs *GraphStore) loop() {
	for job := range gs.jobs {
		job()
	}
}

// submit enqueues fn as the next FIFO critical section and blocks until it
// has run. This is the async-mutex primitive every public method uses.
func (gs *GraphStore) submit(fn func() error) error {
	done := make(chan error, 1)
	gs.jobs <- func() { done <- fn() }
	return <-done
}

func (gs *GraphStore) loadRegistryLocked() error {
	path := filepath.Join(gs.root, registryFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			gs.registry = make(map[string]model.RegistryEntry)
			return nil
		}
		logging.Get(logging.CategoryStore).Warn("registry load failed, starting empty: %v", err)
		gs.registry = make(map[string]model.RegistryEntry)
		return nil
	}
	var reg map[string]model.RegistryEntry
	if err := json.Unmarshal(data, &reg); err != nil {
		logging.Get(logging.CategoryStore).Warn("registry corrupt, starting empty: %v", err)
		gs.registry = make(map[string]model.RegistryEntry)
		return nil
	}
	gs.registry = reg
	return nil
}

func (gs *GraphStore) saveRegistryLocked() error {
	data, err := json.MarshalIndent(gs.registry, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal registry: %w", err)
	}
	path := filepath.Join(gs.root, registryFileName)
	return atomicWrite(path, data)
}

// ReadNode parses a node file. Missing files, malformed YAML, or a
// validation failure all yield (nil, nil) — read failures are non-fatal.
func (gs *GraphStore) ReadNode(filePath string) (*model.Node, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, nil
	}
	n, err := model.ParseMarkdown(string(data))
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("readNode %s: %v", filePath, err)
		return nil, nil
	}
	if err := n.Validate(); err != nil {
		logging.Get(logging.CategoryStore).Warn("readNode %s: %v", filePath, err)
		return nil, nil
	}
	return n, nil
}

// ListNodesByType returns non-archived nodes of the given type, ordered by
// Updated descending. An empty slice is returned when the directory is
// missing or has no nodes.
func (gs *GraphStore) ListNodesByType(t model.NodeType) ([]*model.Node, error) {
	var out []*model.Node
	err := gs.submit(func() error {
		for _, entry := range gs.registry {
			if entry.Type != t || entry.Archived {
				continue
			}
			n, _ := gs.ReadNode(entry.FilePath)
			if n != nil {
				out = append(out, n)
			}
		}
		return nil
	})
	sortByUpdatedDesc(out)
	return out, err
}

// ListAllNodes returns every non-archived node, ordered by Updated
// descending.
func (gs *GraphStore) ListAllNodes() ([]*model.Node, error) {
	var out []*model.Node
	err := gs.submit(func() error {
		for _, entry := range gs.registry {
			if entry.Archived {
				continue
			}
			n, _ := gs.ReadNode(entry.FilePath)
			if n != nil {
				out = append(out, n)
			}
		}
		return nil
	})
	sortByUpdatedDesc(out)
	return out, err
}

func sortByUpdatedDesc(nodes []*model.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Updated > nodes[j].Updated })
}

// WriteNode atomically persists n. If the node already exists in the
// registry its current file path is reused (rename-free update);
// otherwise a fresh dated filename is allocated.
func (gs *GraphStore) WriteNode(n *model.Node) error {
	if err := n.Validate(); err != nil {
		return err
	}
	return gs.submit(func() error {
		filePath := ""
		if existing, ok := gs.registry[n.ID]; ok {
			filePath = existing.FilePath
		} else {
			date := n.Created
			if date == "" {
				date = time.Now().UTC().Format("2006-01-02")
			} else if len(date) >= 10 {
				date = date[:10]
			}
			fp, err := nodeFilePath(gs.root, n.Type, slugFromID(n.ID), date)
			if err != nil {
				return err
			}
			filePath = fp
		}
		content, err := model.RenderMarkdown(n)
		if err != nil {
			return err
		}
		if err := atomicWrite(filePath, []byte(content)); err != nil {
			return err
		}
		gs.registry[n.ID] = model.FromNode(n, filePath)
		return gs.saveRegistryLocked()
	})
}

// UpsertRegistry writes/replaces a registry entry directly, used when a
// caller already holds a fully-formed entry (e.g. after an external patch).
func (gs *GraphStore) UpsertRegistry(id string, entry model.RegistryEntry) error {
	return gs.submit(func() error {
		gs.registry[id] = entry
		return gs.saveRegistryLocked()
	})
}

// Archive flags a node archived in both the registry and its on-disk
// front matter. The file is never deleted.
func (gs *GraphStore) Archive(id string) error {
	return gs.submit(func() error {
		entry, ok := gs.registry[id]
		if !ok {
			return fmt.Errorf("store: archive: unknown node %s", id)
		}
		n, _ := gs.ReadNode(entry.FilePath)
		if n == nil {
			entry.Archived = true
			gs.registry[id] = entry
			return gs.saveRegistryLocked()
		}
		n.Archived = true
		n.Updated = time.Now().UTC().Format(time.RFC3339)
		content, err := model.RenderMarkdown(n)
		if err != nil {
			return err
		}
		if err := atomicWrite(entry.FilePath, []byte(content)); err != nil {
			return err
		}
		gs.registry[id] = model.FromNode(n, entry.FilePath)
		return gs.saveRegistryLocked()
	})
}

// GetEntries returns a snapshot copy of the registry.
func (gs *GraphStore) GetEntries() (map[string]model.RegistryEntry, error) {
	out := make(map[string]model.RegistryEntry)
	err := gs.submit(func() error {
		for k, v := range gs.registry {
			out[k] = v
		}
		return nil
	})
	return out, err
}

// GetNodeFilePaths resolves a set of node ids to their current file paths.
// Ids not present in the registry are omitted from the result.
func (gs *GraphStore) GetNodeFilePaths(ids []string) (map[string]string, error) {
	out := make(map[string]string)
	err := gs.submit(func() error {
		for _, id := range ids {
			if e, ok := gs.registry[id]; ok {
				out[id] = e.FilePath
			}
		}
		return nil
	})
	return out, err
}

// Root returns the omgRoot directory this store manages.
func (gs *GraphStore) Root() string { return gs.root }
