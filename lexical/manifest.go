package lexical

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// manifestFile is the small on-disk record of which segments exist, which
// sources are tombstoned, and when the last merge ran. It is rewritten
// atomically (write-temp, rename) on every commit and merge.
type manifestFile struct {
	SegmentIDs    []uint64 `json:"segment_ids"`
	NextSegmentID uint64   `json:"next_segment_id"`
	Tombstones    []string `json:"tombstones"`
	LastMergeMs   int64    `json:"last_merge_ms"`
}

func manifestPath(dir string) string { return filepath.Join(dir, "manifest.json") }
func segmentPath(dir string, id uint64) string {
	return filepath.Join(dir, fmt.Sprintf("segment_%020d.seg", id))
}

func loadManifest(dir string) (manifestFile, error) {
	data, err := os.ReadFile(manifestPath(dir))
	if os.IsNotExist(err) {
		return manifestFile{NextSegmentID: 1}, nil
	}
	if err != nil {
		return manifestFile{}, err
	}
	var m manifestFile
	if err := json.Unmarshal(data, &m); err != nil {
		return manifestFile{}, fmt.Errorf("lexical: corrupt manifest: %w", err)
	}
	return m, nil
}

// saveManifest writes the manifest via a temp-file-then-rename swap so a
// crash mid-write never leaves a torn manifest behind.
func saveManifest(dir string, m manifestFile) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	tmp := manifestPath(dir) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, manifestPath(dir))
}
