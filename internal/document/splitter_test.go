package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longText(prefix string, n int) string {
	return prefix + strings.Repeat("x", n-len(prefix))
}

func TestSplitClauses(t *testing.T) {
	t.Run("drops short segments", func(t *testing.T) {
		a := longText("Clause A covers hospitalisation ", 120)
		b := longText("Clause B covers maternity ", 150)
		text := a + "\n\nshort heading\n\n" + b

		clauses := SplitClauses(text, DefaultSparseMinLength)
		require.Len(t, clauses, 2)
		assert.Equal(t, a, clauses[0].Text)
		assert.Equal(t, b, clauses[1].Text)
		assert.Equal(t, 0, clauses[0].Position)
		assert.Equal(t, 1, clauses[1].Position)
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		body := longText("Waiting period ", 100)
		clauses := SplitClauses("\n\n   "+body+"  \n\n\n", DefaultSparseMinLength)
		require.Len(t, clauses, 1)
		assert.Equal(t, body, clauses[0].Text)
	})

	t.Run("length boundary is inclusive", func(t *testing.T) {
		exact := strings.Repeat("a", 100)
		under := strings.Repeat("b", 99)
		clauses := SplitClauses(exact+"\n\n"+under, DefaultSparseMinLength)
		require.Len(t, clauses, 1)
		assert.Equal(t, exact, clauses[0].Text)
	})

	t.Run("length counts characters", func(t *testing.T) {
		clause := strings.Repeat("保", 100)
		assert.Len(t, SplitClauses(clause, DefaultSparseMinLength), 1)
	})

	t.Run("single newlines stay inside a clause", func(t *testing.T) {
		body := longText("line one\nline two\n", 130)
		clauses := SplitClauses(body, DefaultSparseMinLength)
		require.Len(t, clauses, 1)
		assert.Contains(t, clauses[0].Text, "line one\nline two")
	})

	t.Run("crlf line endings", func(t *testing.T) {
		a := strings.Repeat("a", 110)
		b := strings.Repeat("b", 110)
		assert.Len(t, SplitClauses(a+"\r\n\r\n"+b, DefaultSparseMinLength), 2)
	})

	t.Run("empty and short input", func(t *testing.T) {
		assert.Empty(t, SplitClauses("", DefaultSparseMinLength))
		assert.Empty(t, SplitClauses("too short\n\nalso short", DefaultSparseMinLength))
		assert.NotNil(t, SplitClauses("", DefaultSparseMinLength))
	})

	t.Run("zero minimum keeps every non-empty segment", func(t *testing.T) {
		clauses := SplitClauses("a\n\n\n\nb\n\n  \n\nc", 0)
		assert.Equal(t, []string{"a", "b", "c"}, Texts(clauses))
	})
}

func TestSplitClausesRoundTrip(t *testing.T) {
	text := "\n\n" + longText("First ", 140) + "\n\nnoise\n\n" + longText("Second\nwith break ", 200) + "\n\n\n" + longText("Third ", 100)

	first := SplitClauses(text, DefaultSparseMinLength)
	second := SplitClauses(JoinClauses(first), DefaultSparseMinLength)
	assert.Equal(t, first, second)
}

func TestClauseSplitter(t *testing.T) {
	splitter := NewClauseSplitter(DefaultDenseMinLength)
	assert.Equal(t, DefaultDenseMinLength, splitter.MinLength())

	text := strings.Repeat("d", 600) + "\n\n" + strings.Repeat("s", 300)
	clauses := splitter.Split(text)
	require.Len(t, clauses, 1)
	assert.Len(t, clauses[0].Text, 600)

	assert.Equal(t, 0, NewClauseSplitter(-5).MinLength())
}
