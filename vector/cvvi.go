// Package vector implements CVVI, the custom memory-mapped vector index
// described in spec §4.3: a row-oriented, content-addressed nearest
// neighbor store with F16/F32 quantization and a parallel dot-product
// scan, grounded on the teacher's own from-scratch vector engine
// (hupe1980/vecgo's index/flat and internal/f16 packages) but rewritten
// to this spec's on-disk row layout.
package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// Quantization selects the on-disk element format of the vector slab.
type Quantization uint8

const (
	QuantF32 Quantization = 0
	QuantF16 Quantization = 1
)

const (
	magic         = "CVVI"
	fileVersion   = uint16(1)
	headerFixedSz = 4 + 2 + 4 + 1 + 4 + 4 // magic+version+dim+quant+rowCount+crc, excluding the two length-prefixed strings
	rowSize       = 70                    // spec §4.3: fixed-size row
)

// ErrCorrupt is returned when the header magic or CRC fails to validate.
// Per spec §4.3 this is fatal and requires a full rebuild from the
// lexical corpus.
var ErrCorrupt = errors.New("vector: corrupt CVVI header (magic/CRC mismatch)")

// ErrIdentityMismatch is returned when the embedder id/revision or
// dimension of an on-disk file doesn't match what the caller expects.
// Also fatal; also requires a rebuild.
var ErrIdentityMismatch = errors.New("vector: embedder identity or dimension mismatch")

// Header is the fixed-layout prefix of a CVVI file.
type Header struct {
	Version        uint16
	EmbedderID     string
	EmbedderRev    string
	Dimension      uint32
	Quantization   Quantization
	RowCount       uint32
}

// Row is one fixed-size (70-byte) entry in the row table.
type Row struct {
	DocID       uint64
	CreatedAtMs int64
	AgentID     uint32
	WorkspaceID uint32
	SourceID    uint32
	Role        uint8
	ChunkIdx    uint8
	VecOffset   uint64   // byte offset into the vector slab
	ContentHash [32]byte
}

func (r Row) encode(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], r.DocID)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(r.CreatedAtMs))
	binary.LittleEndian.PutUint32(buf[16:20], r.AgentID)
	binary.LittleEndian.PutUint32(buf[20:24], r.WorkspaceID)
	binary.LittleEndian.PutUint32(buf[24:28], r.SourceID)
	buf[28] = r.Role
	buf[29] = r.ChunkIdx
	binary.LittleEndian.PutUint64(buf[30:38], r.VecOffset)
	copy(buf[38:70], r.ContentHash[:])
}

func decodeRow(buf []byte) Row {
	var r Row
	r.DocID = binary.LittleEndian.Uint64(buf[0:8])
	r.CreatedAtMs = int64(binary.LittleEndian.Uint64(buf[8:16]))
	r.AgentID = binary.LittleEndian.Uint32(buf[16:20])
	r.WorkspaceID = binary.LittleEndian.Uint32(buf[20:24])
	r.SourceID = binary.LittleEndian.Uint32(buf[24:28])
	r.Role = buf[28]
	r.ChunkIdx = buf[29]
	r.VecOffset = binary.LittleEndian.Uint64(buf[30:38])
	copy(r.ContentHash[:], buf[38:70])
	return r
}

func elementSize(q Quantization) int {
	if q == QuantF16 {
		return 2
	}
	return 4
}

// encodeHeader serializes h (without the trailing CRC) into a fresh byte
// slice, used both to write the file and to compute the CRC that gets
// appended to it.
func encodeHeader(h Header) []byte {
	idB := []byte(h.EmbedderID)
	revB := []byte(h.EmbedderRev)

	buf := make([]byte, 0, headerFixedSz+4+len(idB)+4+len(revB))
	buf = append(buf, magic...)

	var tmp [4]byte
	binary.LittleEndian.PutUint16(tmp[:2], h.Version)
	buf = append(buf, tmp[:2]...)

	binary.LittleEndian.PutUint32(tmp[:], uint32(len(idB)))
	buf = append(buf, tmp[:]...)
	buf = append(buf, idB...)

	binary.LittleEndian.PutUint32(tmp[:], uint32(len(revB)))
	buf = append(buf, tmp[:]...)
	buf = append(buf, revB...)

	binary.LittleEndian.PutUint32(tmp[:], h.Dimension)
	buf = append(buf, tmp[:]...)

	buf = append(buf, byte(h.Quantization))

	binary.LittleEndian.PutUint32(tmp[:], h.RowCount)
	buf = append(buf, tmp[:]...)

	return buf
}

// decodeHeader parses the header prefix of data, validating magic and
// CRC. It returns the header and the byte offset where the row table
// begins.
func decodeHeader(data []byte) (Header, int, error) {
	if len(data) < 4 {
		return Header{}, 0, ErrCorrupt
	}
	if string(data[0:4]) != magic {
		return Header{}, 0, ErrCorrupt
	}
	off := 4
	if len(data) < off+2 {
		return Header{}, 0, ErrCorrupt
	}
	version := binary.LittleEndian.Uint16(data[off : off+2])
	off += 2

	idLen, off2, err := readU32Prefixed(data, off)
	if err != nil {
		return Header{}, 0, err
	}
	id := string(data[off2 : off2+int(idLen)])
	off = off2 + int(idLen)

	revLen, off3, err := readU32Prefixed(data, off)
	if err != nil {
		return Header{}, 0, err
	}
	rev := string(data[off3 : off3+int(revLen)])
	off = off3 + int(revLen)

	if len(data) < off+1+4+4+4 {
		return Header{}, 0, ErrCorrupt
	}
	dim := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	quant := Quantization(data[off])
	off++
	rowCount := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4

	wantCRC := binary.LittleEndian.Uint32(data[off : off+4])
	headerBytes := data[:off]
	gotCRC := crc32.ChecksumIEEE(headerBytes)
	off += 4

	if gotCRC != wantCRC {
		return Header{}, 0, ErrCorrupt
	}

	return Header{
		Version:      version,
		EmbedderID:   id,
		EmbedderRev:  rev,
		Dimension:    dim,
		Quantization: quant,
		RowCount:     rowCount,
	}, off, nil
}

func readU32Prefixed(data []byte, off int) (uint32, int, error) {
	if len(data) < off+4 {
		return 0, 0, ErrCorrupt
	}
	n := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	if len(data) < off+int(n) {
		return 0, 0, ErrCorrupt
	}
	return n, off, nil
}

func validateIdentity(h Header, wantID, wantRev string, wantDim int) error {
	if h.EmbedderID != wantID || h.EmbedderRev != wantRev {
		return fmt.Errorf("%w: file has (%s,%s), want (%s,%s)", ErrIdentityMismatch, h.EmbedderID, h.EmbedderRev, wantID, wantRev)
	}
	if int(h.Dimension) != wantDim {
		return fmt.Errorf("%w: file has dim %d, want %d", ErrIdentityMismatch, h.Dimension, wantDim)
	}
	return nil
}
