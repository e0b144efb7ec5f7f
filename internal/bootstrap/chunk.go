// Package bootstrap implements the one-shot ingestion pipeline: chunk
// source text, batch chunks within a character budget, drive a
// rate-limit-aware retry loop against the oracle, parse and write nodes,
// per spec.md §4.7.
package bootstrap

import "strings"

// SourceEntry is one labeled unit of raw text read from a workspace
// source (markdown file, memory export, log file).
type SourceEntry struct {
	Label string
	Text  string
}

// Chunk is a character-budgeted slice of a source entry.
type Chunk struct {
	Source     string
	ChunkIndex int
	Text       string
}

// ChunkEntries splits every entry's text into chunks no larger than
// charBudget characters. Empty or whitespace-only entries are skipped.
func ChunkEntries(entries []SourceEntry, charBudget int) []Chunk {
	if charBudget <= 0 {
		charBudget = 24000
	}
	var chunks []Chunk
	for _, e := range entries {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		idx := 0
		for len(text) > 0 {
			n := charBudget
			if n > len(text) {
				n = len(text)
			}
			chunks = append(chunks, Chunk{Source: e.Label, ChunkIndex: idx, Text: text[:n]})
			text = text[n:]
			idx++
		}
	}
	return chunks
}

// Batch packs chunks into groups up to charBudget characters each. A
// single oversized chunk passes through alone in its own batch.
type Batch struct {
	Index  int
	Chunks []Chunk
}

func BatchChunks(chunks []Chunk, charBudget int) []Batch {
	if charBudget <= 0 {
		charBudget = 24000
	}
	var batches []Batch
	var cur []Chunk
	curLen := 0

	flush := func() {
		if len(cur) > 0 {
			batches = append(batches, Batch{Index: len(batches), Chunks: cur})
			cur = nil
			curLen = 0
		}
	}

	for _, c := range chunks {
		if len(c.Text) >= charBudget {
			flush()
			batches = append(batches, Batch{Index: len(batches), Chunks: []Chunk{c}})
			continue
		}
		if curLen+len(c.Text) > charBudget {
			flush()
		}
		cur = append(cur, c)
		curLen += len(c.Text)
	}
	flush()
	return batches
}
