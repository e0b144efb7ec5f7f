package sessionstore

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
)

// shingleWidth is the word-gram size used for near-duplicate detection.
// Five-word shingles tolerate small edits while still catching copy-paste
// reuse of a source across bootstrap runs.
const shingleWidth = 5

// Fingerprint computes the hashed 5-word shingle set for a source's text.
func Fingerprint(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) < shingleWidth {
		if len(words) == 0 {
			return nil
		}
		return []string{hashShingle(strings.Join(words, " "))}
	}

	seen := make(map[string]bool)
	var out []string
	for i := 0; i+shingleWidth <= len(words); i++ {
		gram := strings.Join(words[i:i+shingleWidth], " ")
		h := hashShingle(gram)
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

func hashShingle(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return strconv.FormatUint(h.Sum64(), 16)
}

// NearDuplicateThreshold is the overlap ratio at/above which a new
// source is considered a near-duplicate of a previously ingested one.
const NearDuplicateThreshold = 0.85

// CheckAndRecord fingerprints sourceText, compares it against every
// source previously recorded for sessionKey, and records its own
// fingerprint set for future comparisons. It returns the id of the
// closest-matching prior source and whether the overlap ratio meets
// NearDuplicateThreshold.
func CheckAndRecord(ctx context.Context, store *Store, sessionKey, sourceID, sourceText string) (matchedSourceID string, isDuplicate bool, err error) {
	shingles := Fingerprint(sourceText)
	if len(shingles) == 0 {
		return "", false, nil
	}

	bestID, ratio, err := store.BestMatch(ctx, sessionKey, shingles)
	if err != nil {
		return "", false, err
	}

	if err := store.RecordFingerprints(ctx, sessionKey, sourceID, shingles); err != nil {
		return "", false, err
	}

	return bestID, bestID != "" && ratio >= NearDuplicateThreshold, nil
}
