package lexical

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/justSteve/coding-agent-session-search/model"
)

// zstd encoder/decoder pools, mirroring the compression codec used for
// segment persistence: fast writes during commit, cheap reopen at
// startup.
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) { zstdEncoderPool.Put(enc) }

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) { zstdDecoderPool.Put(dec) }

// segmentFileMagic identifies a committed segment file on disk.
const segmentFileMagic = "LSEG"

// persistSegment writes a segment's document table to disk as a
// zstd-compressed JSON blob, length-prefixed behind a small magic header.
// Only the raw documents are persisted; postings are rebuilt from them on
// load, keeping the on-disk format simple and tokenizer-version-agnostic
// (a schema hash change already forces a full rebuild, so postings never
// need to survive a tokenizer change on their own).
func persistSegment(path string, seg *Segment) error {
	body, err := json.Marshal(seg.docs)
	if err != nil {
		return fmt.Errorf("lexical: marshal segment %d: %w", seg.ID, err)
	}

	enc := getZstdEncoder()
	compressed := enc.EncodeAll(body, nil)
	putZstdEncoder(enc)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("lexical: create segment file: %w", err)
	}
	defer f.Close()

	var header [16]byte
	copy(header[:4], segmentFileMagic)
	binary.LittleEndian.PutUint64(header[4:12], seg.ID)
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(compressed)))

	if _, err := f.Write(header[:]); err != nil {
		return err
	}
	if _, err := f.Write(compressed); err != nil {
		return err
	}
	return f.Sync()
}

// loadSegment reads a segment file written by persistSegment and rebuilds
// its in-memory postings via buildSegment.
func loadSegment(path string) (*Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 16 || string(data[:4]) != segmentFileMagic {
		return nil, fmt.Errorf("lexical: %s: %w", path, ErrCorruptSegment)
	}
	id := binary.LittleEndian.Uint64(data[4:12])
	n := binary.LittleEndian.Uint32(data[12:16])
	if len(data) < 16+int(n) {
		return nil, fmt.Errorf("lexical: %s: %w", path, ErrCorruptSegment)
	}

	dec := getZstdDecoder()
	body, err := dec.DecodeAll(data[16:16+n], nil)
	putZstdDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("lexical: decompress segment %d: %w", id, err)
	}

	var docs []model.Document
	if err := json.Unmarshal(body, &docs); err != nil {
		return nil, fmt.Errorf("lexical: unmarshal segment %d: %w", id, err)
	}
	return buildSegment(id, docs), nil
}
