package lexical

import (
	"regexp"
	"strings"

	"github.com/justSteve/coding-agent-session-search/query"
)

// evalResult is the outcome of evaluating one query AST node against a
// segment: which rows satisfy it, and each row's BM25 (or regex-flat)
// score contribution.
type evalResult struct {
	matched          map[uint32]struct{}
	scores           map[uint32]float64
	wildcardFallback bool
}

func newEvalResult() evalResult {
	return evalResult{matched: make(map[uint32]struct{}), scores: make(map[uint32]float64)}
}

// eval evaluates a parsed query tree against the segment, returning the
// matching rows and their scores. A nil/Empty node matches every row with
// a zero score (full scan).
func (s *Segment) eval(n *query.Node) evalResult {
	if n.IsEmpty() {
		res := newEvalResult()
		for row := 0; row < s.docCount(); row++ {
			res.matched[uint32(row)] = struct{}{}
		}
		return res
	}

	switch n.Kind {
	case query.KindTerm:
		return s.evalTerm(n.Text)
	case query.KindPrefix:
		return s.evalPrefix(n.Text)
	case query.KindPhrase:
		return s.evalPhrase(n.Phrase)
	case query.KindRegex:
		return s.evalRegex(n.Text)
	case query.KindAnd:
		return s.evalAnd(n.Children)
	case query.KindOr:
		return s.evalOr(n.Children)
	case query.KindNot:
		return s.evalNot(n.Children[0])
	default:
		return newEvalResult()
	}
}

func (s *Segment) evalTerm(term string) evalResult {
	res := newEvalResult()
	for _, f := range []fieldName{fieldTitle, fieldContent, fieldTitlePrefix, fieldContentPrefix} {
		s.scoreField(res, f, term)
	}
	return res
}

func (s *Segment) evalPrefix(lit string) evalResult {
	res := newEvalResult()
	s.scoreField(res, fieldTitlePrefix, lit)
	s.scoreField(res, fieldContentPrefix, lit)
	return res
}

func (s *Segment) scoreField(res evalResult, f fieldName, term string) {
	list, ok := s.postings[f][term]
	if !ok {
		return
	}
	boost := fieldBoost[string(f)]
	avg := s.avgDocLen(baseField(f))
	docFreq := len(list)
	for _, p := range list {
		docLen := float64(s.docLen[baseField(f)][p.row])
		score := bm25Term(float64(p.freq), docLen, avg, docFreq, s.docCount(), boost)
		res.matched[p.row] = struct{}{}
		res.scores[p.row] += score
	}
}

// baseField maps a prefix field back to the field it shares document
// lengths with (title_prefix and title cover the same tokens' length
// statistics; the edge-n-gram expansion doesn't get its own length
// stats).
func baseField(f fieldName) fieldName {
	switch f {
	case fieldTitlePrefix:
		return fieldTitle
	case fieldContentPrefix:
		return fieldContent
	default:
		return f
	}
}

func (s *Segment) evalPhrase(words []string) evalResult {
	res := newEvalResult()
	if len(words) == 0 {
		return res
	}
	for _, f := range []fieldName{fieldTitle, fieldContent} {
		s.scorePhraseField(res, f, words)
	}
	return res
}

func (s *Segment) scorePhraseField(res evalResult, f fieldName, words []string) {
	first, ok := s.postings[f][words[0]]
	if !ok {
		return
	}
	boost := fieldBoost[string(f)]
	avg := s.avgDocLen(f)
	for _, p0 := range first {
		row := p0.row
		count := countPhraseOccurrences(s, f, row, words)
		if count == 0 {
			continue
		}
		docFreq := len(first) // approximation: doc freq of the phrase anchor term
		docLen := float64(s.docLen[f][row])
		score := bm25Term(float64(count), docLen, avg, docFreq, s.docCount(), boost)
		res.matched[row] = struct{}{}
		res.scores[row] += score
	}
}

// countPhraseOccurrences counts how many times the word sequence appears
// contiguously, starting from any position of words[0] in row's postings.
func countPhraseOccurrences(s *Segment, f fieldName, row uint32, words []string) int {
	starts := postingsPositions(s, f, row, words[0])
	if len(starts) == 0 {
		return 0
	}
	count := 0
	for _, start := range starts {
		ok := true
		for i := 1; i < len(words); i++ {
			positions := postingsPositions(s, f, row, words[i])
			if !containsUint32(positions, start+uint32(i)) {
				ok = false
				break
			}
		}
		if ok {
			count++
		}
	}
	return count
}

func postingsPositions(s *Segment, f fieldName, row uint32, term string) []uint32 {
	list := s.postings[f][term]
	for _, p := range list {
		if p.row == row {
			return p.positions
		}
	}
	return nil
}

func containsUint32(haystack []uint32, v uint32) bool {
	for _, h := range haystack {
		if h == v {
			return true
		}
	}
	return false
}

func (s *Segment) evalRegex(pattern string) evalResult {
	res := newEvalResult()
	res.wildcardFallback = true

	re, err := compileWildcardRegex(pattern)
	if err != nil {
		return res
	}
	for row, d := range s.docs {
		if re.MatchString(strings.ToLower(d.Title)) || re.MatchString(strings.ToLower(d.Content)) {
			res.matched[uint32(row)] = struct{}{}
			res.scores[uint32(row)] += 1.0
		}
	}
	return res
}

// compileWildcardRegex turns a "*foo" / "*foo*" wildcard literal into an
// unanchored case-insensitive substring match over the raw field text;
// the asterisks are stripped, so "*foo" matches the same text as "*foo*".
func compileWildcardRegex(lit string) (*regexp.Regexp, error) {
	core := strings.Trim(lit, "*")
	pattern := "(?i)" + regexp.QuoteMeta(core)
	return regexp.Compile(pattern)
}

func (s *Segment) evalAnd(children []*query.Node) evalResult {
	var positive []evalResult
	var negated []evalResult
	for _, c := range children {
		if c.Kind == query.KindNot {
			negated = append(negated, s.eval(c.Children[0]))
			continue
		}
		positive = append(positive, s.eval(c))
	}

	res := newEvalResult()
	if len(positive) == 0 {
		for row := 0; row < s.docCount(); row++ {
			res.matched[uint32(row)] = struct{}{}
		}
	} else {
		res.matched = positive[0].matched
		for _, p := range positive[1:] {
			res.matched = intersect(res.matched, p.matched)
			res.wildcardFallback = res.wildcardFallback || p.wildcardFallback
		}
		res.wildcardFallback = res.wildcardFallback || positive[0].wildcardFallback
	}

	for _, n := range negated {
		for row := range n.matched {
			delete(res.matched, row)
		}
		res.wildcardFallback = res.wildcardFallback || n.wildcardFallback
	}

	for row := range res.matched {
		for _, p := range positive {
			res.scores[row] += p.scores[row]
		}
	}
	return res
}

func (s *Segment) evalOr(children []*query.Node) evalResult {
	res := newEvalResult()
	for _, c := range children {
		child := s.eval(c)
		res.wildcardFallback = res.wildcardFallback || child.wildcardFallback
		for row := range child.matched {
			res.matched[row] = struct{}{}
		}
		for row, sc := range child.scores {
			res.scores[row] += sc
		}
	}
	return res
}

func (s *Segment) evalNot(child *query.Node) evalResult {
	c := s.eval(child)
	res := newEvalResult()
	res.wildcardFallback = c.wildcardFallback
	for row := 0; row < s.docCount(); row++ {
		r := uint32(row)
		if _, excluded := c.matched[r]; !excluded {
			res.matched[r] = struct{}{}
		}
	}
	return res
}

func intersect(a, b map[uint32]struct{}) map[uint32]struct{} {
	out := make(map[uint32]struct{})
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for row := range small {
		if _, ok := large[row]; ok {
			out[row] = struct{}{}
		}
	}
	return out
}
