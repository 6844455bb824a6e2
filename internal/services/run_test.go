package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fyerfyer/clause-rag/internal/document"
	"github.com/fyerfyer/clause-rag/internal/llm"
	"github.com/fyerfyer/clause-rag/internal/models"
	"github.com/fyerfyer/clause-rag/internal/repository"
	"github.com/fyerfyer/clause-rag/pkg/taskqueue"
)

type runFixture struct {
	service *RunService
	repo    repository.RunRepository
	url     string
}

func setupRunService(t *testing.T, client llm.Client, opts ...RunOption) *runFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:runs_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Run{}))
	repo := repository.NewRunRepositoryWithDB(db)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(policyText))
	}))
	t.Cleanup(server.Close)

	loader := document.NewLoader(nil, document.WithLogger(quietLogger()))
	qa := newSparseService(client, WithLoader(loader))

	opts = append([]RunOption{WithRunLogger(quietLogger())}, opts...)
	return &runFixture{
		service: NewRunService(qa, repo, opts...),
		repo:    repo,
		url:     server.URL + "/policy.txt",
	}
}

func TestSubmitExecutesSynchronouslyWithoutQueue(t *testing.T) {
	model := &groundedModel{answers: map[string]string{"maternity": "Covered after 24 months."}}
	f := setupRunService(t, model)
	assert.False(t, f.service.Async())

	run, err := f.service.Submit(context.Background(), Request{
		Documents: []string{f.url},
		Questions: []string{"Is maternity covered?", "Is dental treatment included?"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, "sparse", run.Strategy)
	assert.Equal(t, 3, run.ClauseCount)
	assert.NotNil(t, run.CompletedAt)

	answers, err := run.AnswerList()
	require.NoError(t, err)
	assert.Equal(t, []string{"Covered after 24 months.", llm.FallbackAnswer}, answers)
}

func TestSubmitRecordsFailure(t *testing.T) {
	client := llm.NewMockClient(t)
	client.EXPECT().
		Generate(mock.Anything, mock.Anything, mock.Anything).
		Return(nil, llm.NewLLMError(llm.ErrCodeRateLimited, "quota exceeded")).
		Once()
	f := setupRunService(t, client)

	_, err := f.service.Submit(context.Background(), Request{
		Documents: []string{f.url},
		Questions: []string{"Is maternity covered?"},
	})
	require.Error(t, err)
	assert.True(t, llm.IsGenerationError(err))

	runs, total, err := f.service.List(context.Background(), 0, 10, models.RunStatusFailed)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Contains(t, runs[0].Error, "quota exceeded")

	answers, err := runs[0].AnswerList()
	require.NoError(t, err)
	assert.Empty(t, answers)
}

func TestSubmitValidatesRequest(t *testing.T) {
	f := setupRunService(t, llm.NewMockClient(t))
	ctx := context.Background()

	_, err := f.service.Submit(ctx, Request{Questions: []string{"q"}})
	assert.ErrorIs(t, err, ErrNoDocuments)

	_, err = f.service.Submit(ctx, Request{Documents: []string{f.url}})
	assert.ErrorIs(t, err, ErrNoQuestions)

	_, err = f.service.Submit(ctx, Request{Documents: []string{f.url}, Questions: []string{"q"}, Strategy: "hybrid"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	_, total, err := f.service.List(ctx, 0, 10, "")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSubmitEnqueuesWhenQueueEnabled(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := taskqueue.DefaultConfig()
	cfg.RedisAddr = mr.Addr()
	queue, err := taskqueue.NewRedisQueue(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })

	model := &groundedModel{answers: map[string]string{"cataract": "Two years."}}
	f := setupRunService(t, model, WithRunQueue(queue))
	assert.True(t, f.service.Async())
	ctx := context.Background()

	run, err := f.service.Submit(ctx, Request{
		Documents: []string{f.url},
		Questions: []string{"What is the waiting period for cataract surgery?"},
		TopK:      1,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, run.Status)
	require.NotEmpty(t, run.TaskID)
	assert.Empty(t, model.prompts)

	task, err := queue.GetTask(ctx, run.TaskID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, task.RunID)

	result, err := f.service.Handler().ProcessTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, &taskqueue.AnswerRunResult{RunID: run.ID, AnswerCount: 1, ClauseCount: 3, Strategy: "sparse"}, result)

	saved, err := f.service.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, saved.Status)
	assert.Equal(t, run.TaskID, saved.TaskID)
	answers, err := saved.AnswerList()
	require.NoError(t, err)
	assert.Equal(t, []string{"Two years."}, answers)

	_, err = f.service.Execute(ctx, run.ID)
	assert.ErrorIs(t, err, models.ErrInvalidRunStatus)
}

func TestGetUnknownRun(t *testing.T) {
	f := setupRunService(t, llm.NewMockClient(t))
	_, err := f.service.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrRunNotFound)
}

func TestHandlerRetriesFailedAttempt(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := taskqueue.DefaultConfig()
	cfg.RedisAddr = mr.Addr()
	queue, err := taskqueue.NewRedisQueue(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })

	client := llm.NewMockClient(t)
	client.EXPECT().
		Generate(mock.Anything, mock.Anything, mock.Anything).
		Return(nil, llm.NewLLMError(llm.ErrCodeServerError, "upstream unavailable")).
		Once()
	client.EXPECT().
		Generate(mock.Anything, mock.Anything, mock.Anything).
		Return(&llm.Response{Text: "Two years."}, nil).
		Once()
	f := setupRunService(t, client, WithRunQueue(queue))
	ctx := context.Background()

	run, err := f.service.Submit(ctx, Request{
		Documents: []string{f.url},
		Questions: []string{"What is the waiting period for cataract surgery?"},
	})
	require.NoError(t, err)
	task, err := queue.GetTask(ctx, run.TaskID)
	require.NoError(t, err)

	// 首次尝试失败，仍有重试次数
	task.Attempts, task.MaxRetries = 0, 1
	_, err = f.service.Handler().ProcessTask(ctx, task)
	require.Error(t, err)

	saved, err := f.service.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, saved.Status)
	assert.Contains(t, saved.Error, "upstream unavailable")
	assert.Nil(t, saved.CompletedAt)

	task.Attempts = 1
	_, err = f.service.Handler().ProcessTask(ctx, task)
	require.NoError(t, err)

	saved, err = f.service.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, saved.Status)
	assert.Empty(t, saved.Error)
	answers, err := saved.AnswerList()
	require.NoError(t, err)
	assert.Equal(t, []string{"Two years."}, answers)
}

func TestHandlerMarksRunFailedOnLastAttempt(t *testing.T) {
	client := llm.NewMockClient(t)
	client.EXPECT().
		Generate(mock.Anything, mock.Anything, mock.Anything).
		Return(nil, llm.NewLLMError(llm.ErrCodeServerError, "upstream unavailable")).
		Once()
	f := setupRunService(t, client)
	ctx := context.Background()

	run := &models.Run{ID: "run-last", Strategy: "sparse"}
	require.NoError(t, run.SetDocuments([]string{f.url}))
	require.NoError(t, run.SetQuestions([]string{"Is maternity covered?"}))
	require.NoError(t, f.repo.Create(run))

	payload, err := taskqueue.MarshalPayload(&taskqueue.AnswerRunPayload{RunID: run.ID})
	require.NoError(t, err)
	task := &taskqueue.Task{ID: "task-last", RunID: run.ID, Payload: payload, Attempts: 2, MaxRetries: 2}

	_, err = f.service.Handler().ProcessTask(ctx, task)
	require.Error(t, err)

	saved, err := f.service.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, saved.Status)
	assert.NotNil(t, saved.CompletedAt)
}
