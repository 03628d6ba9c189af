package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDenseVectorEmptyTextIsZero(t *testing.T) {
	v := denseVector("   ", 32)
	for _, x := range v {
		assert.Equal(t, float32(0), x)
	}
}

func TestDenseVectorIsUnitLength(t *testing.T) {
	v := denseVector("func ParseTree(src []byte) (*Tree, error)", 64)
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sumSquares, 0.001)
}

func TestDenseVectorDiffersForDifferentText(t *testing.T) {
	a := denseVector("parse the syntax tree", 64)
	b := denseVector("connect to the database", 64)
	assert.NotEqual(t, a, b)
}

func TestTokenVectorsOneRowPerToken(t *testing.T) {
	rows := tokenVectors("func ParseTree", 32, 16)
	assert.Len(t, rows, len(filterStopWords(tokenize("func ParseTree"))))
}

func TestTokenVectorsCapsAtMaxTokens(t *testing.T) {
	rows := tokenVectors("alpha beta gamma delta epsilon zeta", 32, 3)
	assert.Len(t, rows, 3)
}

func TestTokenVectorsFallsBackToDenseForEmptyTokens(t *testing.T) {
	rows := tokenVectors("func", 32, 16)
	require := assert.New(t)
	require.Len(rows, 1)
}

func TestSplitCamelCaseBoundaries(t *testing.T) {
	assert.Equal(t, []string{"Parse", "Tree"}, splitCamelCase("ParseTree"))
	assert.Equal(t, []string{"HTTP", "Client"}, splitCamelCase("HTTPClient"))
}

func TestSplitCodeTokenSnakeCase(t *testing.T) {
	assert.Equal(t, []string{"parse", "syntax", "tree"}, splitCodeToken("parse_syntax_tree"))
}

func TestFilterStopWordsRemovesKeywords(t *testing.T) {
	out := filterStopWords([]string{"func", "parse", "return", "tree"})
	assert.Equal(t, []string{"parse", "tree"}, out)
}

func TestExtractNgramsShortTextReturnsEmpty(t *testing.T) {
	assert.Empty(t, extractNgrams("ab", 3))
}

func TestHashToIndexWithinRange(t *testing.T) {
	idx := hashToIndex("some-token", 128)
	assert.GreaterOrEqual(t, idx, 0)
	assert.Less(t, idx, 128)
}
