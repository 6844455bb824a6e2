package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fyerfyer/clause-rag/internal/database"
	"github.com/fyerfyer/clause-rag/internal/models"
)

func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	// 使用唯一的内存数据库标识符
	dbName := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")
	require.NoError(t, db.AutoMigrate(&models.Run{}), "Failed to run migrations")

	originalDB := database.DB
	database.DB = db
	return db, func() { database.DB = originalDB }
}

func newRun(t *testing.T, id string) *models.Run {
	t.Helper()
	run := &models.Run{ID: id, Strategy: "sparse", TopK: 1}
	require.NoError(t, run.SetDocuments([]string{"https://example.com/policy.pdf"}))
	require.NoError(t, run.SetQuestions([]string{"q1", "q2"}))
	return run
}

func TestRunRepository_CreateAndGet(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRunRepository()
	require.NoError(t, repo.Create(newRun(t, "run-1")))

	saved, err := repo.GetByID("run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, saved.Status)
	assert.False(t, saved.CreatedAt.IsZero())

	questions, err := saved.QuestionList()
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "q2"}, questions)

	answers, err := saved.AnswerList()
	require.NoError(t, err)
	assert.Empty(t, answers)
}

func TestRunRepository_CreateRequiresID(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	assert.Error(t, NewRunRepository().Create(&models.Run{}))
}

func TestRunRepository_GetMissing(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewRunRepository().GetByID("missing")
	assert.True(t, errors.Is(err, models.ErrRunNotFound))
}

func TestRunRepository_StatusLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRunRepositoryWithDB(db)
	require.NoError(t, repo.Create(newRun(t, "run-2")))

	require.NoError(t, repo.UpdateStatus("run-2", models.RunStatusProcessing, ""))
	run, err := repo.GetByID("run-2")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusProcessing, run.Status)
	assert.Nil(t, run.CompletedAt)

	require.NoError(t, repo.SaveAnswers("run-2", []string{"a1", "a2"}, 7))
	run, err = repo.GetByID("run-2")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 7, run.ClauseCount)
	assert.NotNil(t, run.CompletedAt)

	answers, err := run.AnswerList()
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, answers)
}

func TestRunRepository_FailedRunKeepsError(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRunRepository()
	require.NoError(t, repo.Create(newRun(t, "run-3")))
	require.NoError(t, repo.UpdateStatus("run-3", models.RunStatusFailed, "empty corpus"))

	run, err := repo.GetByID("run-3")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, "empty corpus", run.Error)
	assert.NotNil(t, run.CompletedAt)
}

func TestRunRepository_UpdateValidation(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRunRepository()
	err := repo.UpdateStatus("run-x", models.RunStatus("bogus"), "")
	assert.True(t, errors.Is(err, models.ErrInvalidRunStatus))

	err = repo.UpdateStatus("run-x", models.RunStatusProcessing, "")
	assert.True(t, errors.Is(err, models.ErrRunNotFound))
}

func TestRunRepository_ListAndDelete(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRunRepository()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(newRun(t, fmt.Sprintf("run-%d", i))))
	}
	require.NoError(t, repo.UpdateStatus("run-1", models.RunStatusFailed, "boom"))
	require.NoError(t, repo.SetTaskID("run-0", "task-0"))

	runs, total, err := repo.List(0, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, runs, 3)

	runs, total, err = repo.List(0, 10, models.RunStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "run-1", runs[0].ID)

	run, err := repo.GetByID("run-0")
	require.NoError(t, err)
	assert.Equal(t, "task-0", run.TaskID)

	require.NoError(t, repo.Delete("run-2"))
	_, err = repo.GetByID("run-2")
	assert.True(t, errors.Is(err, models.ErrRunNotFound))
}
