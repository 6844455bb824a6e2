package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/clause-rag/internal/document"
	"github.com/fyerfyer/clause-rag/internal/llm"
	"github.com/fyerfyer/clause-rag/internal/retrieval"
	"github.com/fyerfyer/clause-rag/internal/services"
)

func pad(text string) string {
	for len(text) < 120 {
		text += " filler"
	}
	return text
}

var policyText = strings.Join([]string{
	pad("The grace period for premium payment is thirty days after the due date."),
	pad("Maternity expenses are covered after twenty four months of continuous coverage."),
	pad("Cataract surgery has a waiting period of two years from policy inception."),
}, "\n\n")

// keywordModel 上下文包含关键词时作答
type keywordModel struct {
	answers map[string]string
}

func (m keywordModel) Generate(_ context.Context, prompt string, _ ...llm.GenerateOption) (*llm.Response, error) {
	contextPart := strings.ToLower(prompt[strings.Index(prompt, "Context:"):strings.Index(prompt, "User Query:")])
	for keyword, answer := range m.answers {
		if strings.Contains(contextPart, keyword) {
			return &llm.Response{Text: answer}, nil
		}
	}
	return &llm.Response{Text: llm.FallbackAnswer}, nil
}

func (m keywordModel) Name() string { return "keyword" }

func useTestQA(t *testing.T) string {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	qa := services.NewQAService(
		retrieval.NewSparseStrategy(),
		llm.NewAnswerer(keywordModel{answers: map[string]string{
			"maternity": "After twenty four months.",
			"cataract":  "Two years.",
		}}),
		services.WithLoader(document.NewLoader(nil, document.WithLogger(logger))),
		services.WithQALogger(logger),
	)

	original := buildQA
	buildQA = func() (*services.QAService, error) { return qa, nil }
	t.Cleanup(func() { buildQA = original })

	path := filepath.Join(t.TempDir(), "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte(policyText), 0644))
	return path
}

func prepare(t *testing.T, cmd *cobra.Command) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetContext(context.Background())
	t.Cleanup(func() {
		askSources, searchSources = documentSources{}, documentSources{}
		askQuestions, askStrategy, askTopK, askJSON = nil, "", 0, false
		searchStrategy, searchTopK, searchJSON = "", 3, false
	})
	return buf
}

func TestAskCmd_Flags(t *testing.T) {
	assert.Equal(t, "ask", askCmd.Use)
	for _, name := range []string{"file", "url", "question", "strategy", "top-k", "json"} {
		assert.NotNil(t, askCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "q", askCmd.Flags().Lookup("question").Shorthand)
}

func TestAskAnswersInOrder(t *testing.T) {
	path := useTestQA(t)
	buf := prepare(t, askCmd)

	askSources.files = []string{path}
	askQuestions = []string{"When is maternity covered?", "Is dental treatment included?", "What is the cataract waiting period?"}

	require.NoError(t, runAsk(askCmd, nil))
	out := buf.String()
	assert.Contains(t, out, "A1: After twenty four months.")
	assert.Contains(t, out, "A2: "+llm.FallbackAnswer)
	assert.Contains(t, out, "A3: Two years.")
	assert.Less(t, strings.Index(out, "Q1:"), strings.Index(out, "Q2:"))
}

func TestAskJSONOutput(t *testing.T) {
	path := useTestQA(t)
	buf := prepare(t, askCmd)

	askSources.files = []string{path}
	askQuestions = []string{"Are maternity expenses covered?"}
	askJSON = true

	require.NoError(t, runAsk(askCmd, nil))
	var out map[string][]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, []string{"After twenty four months."}, out["answers"])
}

func TestAskRequiresQuestionsAndDocuments(t *testing.T) {
	path := useTestQA(t)
	prepare(t, askCmd)

	askSources.files = []string{path}
	assert.ErrorContains(t, runAsk(askCmd, nil), "--question")

	askSources.files = nil
	askQuestions = []string{"grace?"}
	assert.ErrorContains(t, runAsk(askCmd, nil), "--file")
}

func TestAskUnsupportedFile(t *testing.T) {
	useTestQA(t)
	prepare(t, askCmd)

	path := filepath.Join(t.TempDir(), "notes.xyz")
	require.NoError(t, os.WriteFile(path, []byte(policyText), 0644))
	askSources.files = []string{path}
	askQuestions = []string{"grace?"}

	assert.ErrorIs(t, runAsk(askCmd, nil), document.ErrUnsupportedFormat)
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"search"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchPrintsClosestClauses(t *testing.T) {
	path := useTestQA(t)
	buf := prepare(t, searchCmd)

	searchSources.files = []string{path}
	searchTopK = 2
	searchJSON = true

	require.NoError(t, runSearch(searchCmd, []string{"cataract surgery waiting period"}))
	var results []searchResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Position)
	assert.True(t, strings.HasPrefix(results[0].Text, "Cataract"))
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
}

func TestSearchUnknownStrategy(t *testing.T) {
	path := useTestQA(t)
	prepare(t, searchCmd)

	searchSources.files = []string{path}
	searchStrategy = "dense"

	assert.ErrorIs(t, runSearch(searchCmd, []string{"grace"}), services.ErrUnknownStrategy)
}
