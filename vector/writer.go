package vector

import (
	"encoding/binary"
	"hash/crc32"
	"math"
	"os"

	"github.com/justSteve/coding-agent-session-search/internal/f16"
)

// RowInput is one vector plus its addressing metadata, as handed to the
// vector writer by the façade's index_batch (spec §4.10).
type RowInput struct {
	DocID       uint64
	CreatedAtMs int64
	AgentID     uint32
	WorkspaceID uint32
	SourceID    uint32
	Role        uint8
	ChunkIdx    uint8
	ContentHash [32]byte
	Vector      []float32
}

// WriteOptions configures how a CVVI file is serialized.
type WriteOptions struct {
	EmbedderID   string
	EmbedderRev  string
	Dimension    int
	Quantization Quantization
}

// Write serializes rows into a new CVVI file at path, overwriting any
// existing file. Row order in the row table matches rows' input order;
// callers wanting doc_id-sorted tie-breaks at query time don't need to
// pre-sort since Query breaks ties on doc_id itself (spec §4.3).
func Write(path string, rows []RowInput, opts WriteOptions) error {
	elemSz := elementSize(opts.Quantization)

	header := Header{
		Version:      fileVersion,
		EmbedderID:   opts.EmbedderID,
		EmbedderRev:  opts.EmbedderRev,
		Dimension:    uint32(opts.Dimension),
		Quantization: opts.Quantization,
		RowCount:     uint32(len(rows)),
	}

	headerBytes := encodeHeaderWithCRC(header)

	rowTableBytes := make([]byte, len(rows)*rowSize)
	slabBytes := make([]byte, len(rows)*opts.Dimension*elemSz)

	for i, in := range rows {
		vecOffset := uint64(i * opts.Dimension * elemSz)
		row := Row{
			DocID:       in.DocID,
			CreatedAtMs: in.CreatedAtMs,
			AgentID:     in.AgentID,
			WorkspaceID: in.WorkspaceID,
			SourceID:    in.SourceID,
			Role:        in.Role,
			ChunkIdx:    in.ChunkIdx,
			VecOffset:   vecOffset,
			ContentHash: in.ContentHash,
		}
		row.encode(rowTableBytes[i*rowSize : (i+1)*rowSize])

		dst := slabBytes[vecOffset : vecOffset+uint64(opts.Dimension*elemSz)]
		switch opts.Quantization {
		case QuantF16:
			bits := make([]f16.Bits, opts.Dimension)
			f16.Encode(bits, in.Vector)
			for j, b := range bits {
				dst[j*2] = byte(b)
				dst[j*2+1] = byte(b >> 8)
			}
		default:
			for j, v := range in.Vector {
				binary.LittleEndian.PutUint32(dst[j*4:j*4+4], math.Float32bits(v))
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(headerBytes); err != nil {
		return err
	}
	if _, err := f.Write(rowTableBytes); err != nil {
		return err
	}
	if _, err := f.Write(slabBytes); err != nil {
		return err
	}
	return f.Sync()
}

func encodeHeaderWithCRC(h Header) []byte {
	body := encodeHeader(h)
	crc := crc32.ChecksumIEEE(body)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], crc)
	return append(body, tmp[:]...)
}
