package cache

import (
	"encoding/json"
	"errors"

	"github.com/pierrec/lz4/v4"
)

// coldEntry is a cold-stored cache entry: its JSON encoding, LZ4-block
// compressed. Evicting to cold storage instead of dropping outright lets
// a shard retain more history within the same cache_byte_cap, mirroring
// the teacher's dual hot/cold block-compression codec (lz4 fast path)
// used for reclaiming the byte budget rather than discarding data.
type coldEntry struct {
	key              string
	compressed       []byte
	uncompressedSize int
}

var errColdDecompressSize = errors.New("cache: cold entry decompressed size mismatch")

func compressEntryForCold(key string, value Entry) (*coldEntry, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	bound := lz4.CompressBlockBound(len(raw))
	dst := make([]byte, bound)
	n, err := lz4.CompressBlock(raw, dst, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Incompressible (or too small to benefit); keep raw bytes verbatim,
		// using len(compressed) == uncompressedSize as the "stored uncompressed" signal.
		return &coldEntry{key: key, compressed: raw, uncompressedSize: len(raw)}, nil
	}
	return &coldEntry{key: key, compressed: dst[:n], uncompressedSize: len(raw)}, nil
}

func decompressColdEntry(ce *coldEntry) (Entry, error) {
	if len(ce.compressed) == ce.uncompressedSize {
		var e Entry
		if err := json.Unmarshal(ce.compressed, &e); err != nil {
			return Entry{}, err
		}
		return e, nil
	}
	raw := make([]byte, ce.uncompressedSize)
	n, err := lz4.UncompressBlock(ce.compressed, raw)
	if err != nil {
		return Entry{}, err
	}
	if n != ce.uncompressedSize {
		return Entry{}, errColdDecompressSize
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// byteSize approximates a cold entry's footprint against the
// shard's cold byte budget.
func (c *coldEntry) byteSize() int64 { return int64(len(c.compressed)) }
