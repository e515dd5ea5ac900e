package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_BareTermIsTerm(t *testing.T) {
	n, err := Parse("auth")
	require.NoError(t, err)
	assert.Equal(t, KindTerm, n.Kind)
	assert.Equal(t, "auth", n.Text)
}

func TestParse_EmptyIsFullScan(t *testing.T) {
	n, err := Parse("   ")
	require.NoError(t, err)
	assert.True(t, n.IsEmpty())
}

func TestParse_TrailingStarIsPrefix(t *testing.T) {
	n, err := Parse("foo*")
	require.NoError(t, err)
	assert.Equal(t, KindPrefix, n.Kind)
	assert.Equal(t, "foo", n.Text)
}

func TestParse_LeadingStarIsRegex(t *testing.T) {
	n, err := Parse("*foo*")
	require.NoError(t, err)
	assert.Equal(t, KindRegex, n.Kind)
}

func TestParse_QuotedIsPhrase(t *testing.T) {
	n, err := Parse(`"auth bug"`)
	require.NoError(t, err)
	assert.Equal(t, KindPhrase, n.Kind)
	assert.Equal(t, []string{"auth", "bug"}, n.Phrase)
}

func TestParse_ImplicitAnd(t *testing.T) {
	n, err := Parse("auth bug")
	require.NoError(t, err)
	assert.Equal(t, KindAnd, n.Kind)
	require.Len(t, n.Children, 2)
}

func TestParse_ExplicitOr(t *testing.T) {
	n, err := Parse("auth OR bug")
	require.NoError(t, err)
	assert.Equal(t, KindOr, n.Kind)
}

func TestParse_NotNegatesNext(t *testing.T) {
	n, err := Parse("auth NOT bug")
	require.NoError(t, err)
	require.Equal(t, KindAnd, n.Kind)
	assert.Equal(t, KindNot, n.Children[1].Kind)
}

func TestParse_Parens(t *testing.T) {
	n, err := Parse("(auth OR login) bug")
	require.NoError(t, err)
	assert.Equal(t, KindAnd, n.Kind)
	assert.Equal(t, KindOr, n.Children[0].Kind)
}

func TestParse_UnterminatedQuoteErrors(t *testing.T) {
	_, err := Parse(`"auth bug`)
	assert.Error(t, err)
}

func TestPlanFor_Classifications(t *testing.T) {
	cases := []struct {
		q    string
		want Strategy
	}{
		{"auth", StrategyBooleanCombination},
		{"foo*", StrategyEdgeNgram},
		{"*foo*", StrategyRegexScan},
		{"auth bug", StrategyBooleanCombination},
		{"", StrategyFullScan},
	}
	for _, c := range cases {
		p, err := PlanQuery(c.q)
		require.NoError(t, err)
		assert.Equal(t, c.want, p.Strategy, "query %q", c.q)
	}
}

func TestPlanFor_RegexInsideBooleanIsHighCost(t *testing.T) {
	p, err := PlanQuery("auth AND *bug*")
	require.NoError(t, err)
	assert.Equal(t, StrategyRegexScan, p.Strategy)
	assert.Equal(t, CostHigh, p.Cost)
}
