package lexical

import "math"

// BM25 parameters, matching the teacher's reference engine (k1=1.2,
// b=0.75, the Okapi defaults).
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// fieldBoost gives title matches more weight than content matches, per
// spec §4.2 ("title outranks content on term presence"). Prefix-field
// matches share their parent field's boost.
var fieldBoost = map[string]float64{
	"title":          2.0,
	"content":        1.0,
	"title_prefix":   2.0,
	"content_prefix": 1.0,
}

// idf is the standard BM25 inverse document frequency: log(1 + (N - n +
// 0.5) / (n + 0.5)).
func idf(totalDocs, docFreq int) float64 {
	N := float64(totalDocs)
	n := float64(docFreq)
	return math.Log(1 + (N-n+0.5)/(n+0.5))
}

// bm25Term scores a single term occurrence against one field.
func bm25Term(tf float64, docLen, avgDocLen float64, docFreq, totalDocs int, boost float64) float64 {
	idfVal := idf(totalDocs, docFreq)
	num := tf * (bm25K1 + 1)
	denom := tf + bm25K1*(1-bm25B+bm25B*(docLen/avgDocLen))
	return boost * idfVal * (num / denom)
}
