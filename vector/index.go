package vector

import (
	"encoding/binary"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/justSteve/coding-agent-session-search/internal/f16"
	"github.com/justSteve/coding-agent-session-search/internal/mmapfile"
	"github.com/justSteve/coding-agent-session-search/vector/simd"
)

// Index is an open, memory-mapped CVVI file (spec §4.3).
type Index struct {
	mf     *mmapfile.File
	header Header
	rows   []byte // row table region, still inside mf.Data
	slab   []byte // vector slab region, still inside mf.Data

	// closeMu guards the unmap on Close against in-flight readers: Borrow
	// takes it for reading for the duration of one search, Close takes it
	// for writing so it blocks until every outstanding Borrow has
	// Released, then unmaps exactly once. This is what lets a reader
	// swapped out by a reload keep scanning its own (stale but valid)
	// mapping instead of faulting on a concurrent munmap (spec §5 "old
	// maps drop once no outstanding search references them").
	closeMu sync.RWMutex
	closed  bool

	// f32slab holds a once-materialized float32 copy of the slab when the
	// on-disk quantization is F16 and pre-convert is enabled ("Loading
	// policy", spec §4.3). nil otherwise.
	f32slab []float32

	elemSz int

	// parallelThreshold mirrors vector_parallel_threshold (spec §6).
	parallelThreshold int
}

// OpenOptions configures how an on-disk CVVI file is loaded.
type OpenOptions struct {
	// PreConvert materializes an F32 slab at load time when the on-disk
	// quantization is F16 (vector_preconvert, default on).
	PreConvert bool
	// ParallelThreshold is the row count at which Query parallelizes
	// (vector_parallel_threshold, default 10000).
	ParallelThreshold int
	// WantEmbedderID/WantEmbedderRev/WantDimension, when non-zero/non-empty,
	// are validated against the file header; mismatch is fatal (§4.3).
	WantEmbedderID  string
	WantEmbedderRev string
	WantDimension   int
}

// Open memory-maps the CVVI file at path and validates its header.
func Open(path string, opts OpenOptions) (*Index, error) {
	mf, err := mmapfile.Open(path)
	if err != nil {
		return nil, err
	}

	h, rowTableOff, err := decodeHeader(mf.Data)
	if err != nil {
		mf.Close()
		return nil, err
	}

	if opts.WantEmbedderID != "" {
		if err := validateIdentity(h, opts.WantEmbedderID, opts.WantEmbedderRev, opts.WantDimension); err != nil {
			mf.Close()
			return nil, err
		}
	}

	elemSz := elementSize(h.Quantization)
	rowsLen := int(h.RowCount) * rowSize
	slabLen := int(h.RowCount) * int(h.Dimension) * elemSz

	if len(mf.Data) < rowTableOff+rowsLen+slabLen {
		mf.Close()
		return nil, ErrCorrupt
	}

	idx := &Index{
		mf:                mf,
		header:            h,
		rows:              mf.Data[rowTableOff : rowTableOff+rowsLen],
		slab:              mf.Data[rowTableOff+rowsLen : rowTableOff+rowsLen+slabLen],
		elemSz:            elemSz,
		parallelThreshold: opts.ParallelThreshold,
	}
	if idx.parallelThreshold <= 0 {
		idx.parallelThreshold = 10000
	}

	if h.Quantization == QuantF16 && opts.PreConvert {
		idx.materializeF32()
	}

	return idx, nil
}

func (idx *Index) materializeF32() {
	n := int(idx.header.RowCount) * int(idx.header.Dimension)
	idx.f32slab = make([]float32, n)
	bits := make([]f16.Bits, n)
	for i := 0; i < n; i++ {
		bits[i] = f16.Bits(binary.LittleEndian.Uint16(idx.slab[i*2 : i*2+2]))
	}
	f16.Decode(idx.f32slab, bits)
}

// Borrow registers the caller as an in-flight reader, deferring any
// concurrent Close until Release is called. It returns false if idx has
// already been closed, in which case the caller must not call Release
// and should reload a fresh index instead of reading this one.
func (idx *Index) Borrow() bool {
	if idx == nil {
		return false
	}
	idx.closeMu.RLock()
	if idx.closed {
		idx.closeMu.RUnlock()
		return false
	}
	return true
}

// Release ends a borrow started by a successful Borrow call.
func (idx *Index) Release() {
	if idx == nil {
		return
	}
	idx.closeMu.RUnlock()
}

// Close unmaps the file, blocking until every outstanding Borrow has
// Released so no in-flight scan can read from memory after it is
// munmapped. Safe to call on a nil *Index, and safe to call more than
// once.
func (idx *Index) Close() error {
	if idx == nil {
		return nil
	}
	idx.closeMu.Lock()
	defer idx.closeMu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true
	return idx.mf.Close()
}

// RowCount returns the number of rows in the index.
func (idx *Index) RowCount() int { return int(idx.header.RowCount) }

// Header returns the validated header of the open file.
func (idx *Index) Header() Header { return idx.header }

// Row returns the decoded row at the given row index. Row indices are
// positional and not stable across rebuilds (spec §9 "Vector row ID
// stability"); callers must use DocID for any cross-rebuild identity.
func (idx *Index) Row(rowIdx int) Row {
	return decodeRow(idx.rows[rowIdx*rowSize : (rowIdx+1)*rowSize])
}

// vectorAt returns the float32 vector for rowIdx, converting from F16 on
// the fly when no pre-converted slab is available.
func (idx *Index) vectorAt(rowIdx int, scratch []float32) []float32 {
	dim := int(idx.header.Dimension)
	if idx.f32slab != nil {
		return idx.f32slab[rowIdx*dim : (rowIdx+1)*dim]
	}
	if idx.header.Quantization == QuantF32 {
		off := rowIdx * dim * 4
		for i := 0; i < dim; i++ {
			bits := binary.LittleEndian.Uint32(idx.slab[off+i*4 : off+i*4+4])
			scratch[i] = math.Float32frombits(bits)
		}
		return scratch
	}
	off := rowIdx * dim * 2
	for i := 0; i < dim; i++ {
		b := f16.Bits(binary.LittleEndian.Uint16(idx.slab[off+i*2 : off+i*2+2]))
		scratch[i] = f16.ToFloat32(b)
	}
	return scratch
}

// VectorAt returns a fresh copy of the float32 vector stored at rowIdx,
// converting from F16 on the fly when needed. Used by callers that need
// to carry existing rows forward into a rewritten file (the façade's
// index_batch merges new rows with the previous snapshot's rows since a
// CVVI file is rewritten whole on each commit, spec §4.3/§4.10).
func (idx *Index) VectorAt(rowIdx int) []float32 {
	dim := int(idx.header.Dimension)
	out := make([]float32, dim)
	copy(out, idx.vectorAt(rowIdx, out))
	return out
}

// Query scans the index (optionally restricted to prefilter row indices,
// which must be sorted ascending per spec §4.3) and returns the top-K
// rows by dot product against q. Scans above parallelThreshold rows run
// in chunks of ~1024 rows across worker goroutines with thread-local
// bounded heaps, merged at the end.
func (idx *Index) Query(q []float32, k int, prefilter []int) []Candidate {
	var rowIdxs []int
	if prefilter != nil {
		rowIdxs = prefilter
	} else {
		rowIdxs = make([]int, idx.RowCount())
		for i := range rowIdxs {
			rowIdxs[i] = i
		}
	}

	if len(rowIdxs) < idx.parallelThreshold {
		return idx.scanSequential(q, k, rowIdxs)
	}
	return idx.scanParallel(q, k, rowIdxs)
}

func (idx *Index) scanSequential(q []float32, k int, rowIdxs []int) []Candidate {
	dim := int(idx.header.Dimension)
	scratch := make([]float32, dim)
	h := newTopKHeap(k)
	for _, ri := range rowIdxs {
		vec := idx.vectorAt(ri, scratch)
		score := simd.Dot(q, vec)
		row := idx.Row(ri)
		h.Offer(Candidate{DocID: row.DocID, Score: score, Approx: idx.header.Quantization == QuantF16})
	}
	return h.Sorted()
}

const chunkSize = 1024

func (idx *Index) scanParallel(q []float32, k int, rowIdxs []int) []Candidate {
	numChunks := (len(rowIdxs) + chunkSize - 1) / chunkSize
	workers := runtime.GOMAXPROCS(0)
	if workers > numChunks {
		workers = numChunks
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]*topKHeap, numChunks)
	var nextChunk int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dim := int(idx.header.Dimension)
			scratch := make([]float32, dim)
			for {
				mu.Lock()
				ci := nextChunk
				nextChunk++
				mu.Unlock()
				if ci >= numChunks {
					return
				}
				start := ci * chunkSize
				end := start + chunkSize
				if end > len(rowIdxs) {
					end = len(rowIdxs)
				}
				h := newTopKHeap(k)
				for _, ri := range rowIdxs[start:end] {
					vec := idx.vectorAt(ri, scratch)
					score := simd.Dot(q, vec)
					row := idx.Row(ri)
					h.Offer(Candidate{DocID: row.DocID, Score: score, Approx: idx.header.Quantization == QuantF16})
				}
				results[ci] = h
			}
		}()
	}
	wg.Wait()

	merged := newTopKHeap(k)
	for _, h := range results {
		if h == nil {
			continue
		}
		for _, c := range h.items {
			merged.Offer(c)
		}
	}
	return merged.Sorted()
}

// SortPrefilter is a convenience used by callers (the façade) to satisfy
// the "prefilters must be sorted" requirement of spec §4.3.
func SortPrefilter(rowIdxs []int) {
	sort.Ints(rowIdxs)
}
