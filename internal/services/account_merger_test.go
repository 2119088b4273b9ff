package services

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/process-tracker-api/internal/models"
	"github.com/yukikurage/process-tracker-api/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestAccountMerger_CollisionIgnoresCase(t *testing.T) {
	env := newIdentityTestEnv(t)
	ctx := context.Background()
	source := createGhostUser(t, env.db, "ghost", "d-1")
	target := createWebUser(t, env.db, "web", "web@example.com")

	sourceProcess := createProcess(t, env.db, source.ID, "acme ", strPtr("ENGINEER"), "Applied", "Interview")
	targetProcess := createProcess(t, env.db, target.ID, "Acme", strPtr("Engineer"), "Applied")

	report, err := env.merger.Merge(ctx, source, target)
	require.NoError(t, err)
	assert.Equal(t, 1, report.MovedProcesses)
	assert.Equal(t, 1, report.ReplacedProcesses)

	processes, err := env.processes.ListByUser(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, processes, 1)
	assert.Equal(t, sourceProcess.ID, processes[0].ID)

	_, err = env.processes.FindByID(ctx, targetProcess.ID)
	require.ErrorIs(t, err, repository.ErrProcessNotFound)

	var orphanStages int64
	require.NoError(t, env.db.Model(&models.Stage{}).Where("process_id = ?", targetProcess.ID).Count(&orphanStages).Error)
	assert.Zero(t, orphanStages)

	moved, err := env.processes.FindByID(ctx, sourceProcess.ID)
	require.NoError(t, err)
	require.Len(t, moved.Stages, 2)
	assert.Equal(t, "Applied", moved.Stages[0].StageName)
	assert.Equal(t, "Interview", moved.Stages[1].StageName)
}

func TestAccountMerger_MissingPositionsCollide(t *testing.T) {
	env := newIdentityTestEnv(t)
	ctx := context.Background()
	source := createGhostUser(t, env.db, "ghost", "d-1")
	target := createWebUser(t, env.db, "web", "web@example.com")

	sourceProcess := createProcess(t, env.db, source.ID, "Globex", nil)
	createProcess(t, env.db, target.ID, "globex", strPtr("   "))

	report, err := env.merger.Merge(ctx, source, target)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ReplacedProcesses)

	processes, err := env.processes.ListByUser(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, processes, 1)
	assert.Equal(t, sourceProcess.ID, processes[0].ID)
}

func TestAccountMerger_DistinctProcessesPassThrough(t *testing.T) {
	env := newIdentityTestEnv(t)
	ctx := context.Background()
	source := createGhostUser(t, env.db, "ghost", "d-1")
	target := createWebUser(t, env.db, "web", "web@example.com")

	createProcess(t, env.db, source.ID, "Acme", strPtr("Backend"))
	createProcess(t, env.db, source.ID, "Initech", nil)
	createProcess(t, env.db, target.ID, "Acme", strPtr("Frontend"))
	createProcess(t, env.db, target.ID, "Hooli", nil)

	report, err := env.merger.Merge(ctx, source, target)
	require.NoError(t, err)
	assert.Equal(t, 2, report.MovedProcesses)
	assert.Zero(t, report.ReplacedProcesses)

	processes, err := env.processes.ListByUser(ctx, target.ID)
	require.NoError(t, err)
	assert.Len(t, processes, 4)
}

func TestAccountMerger_MovesFeedbackAndDeletesSource(t *testing.T) {
	env := newIdentityTestEnv(t)
	ctx := context.Background()
	source := createGhostUser(t, env.db, "ghost", "d-1")
	target := createWebUser(t, env.db, "web", "web@example.com")

	for _, message := range []string{"great bot", "found a bug"} {
		require.NoError(t, env.db.Create(&models.Feedback{UserID: &source.ID, Message: message}).Error)
	}
	require.NoError(t, env.db.Create(&models.Feedback{Message: "anonymous"}).Error)

	report, err := env.merger.Merge(ctx, source, target)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.MovedFeedback)

	var owned int64
	require.NoError(t, env.db.Model(&models.Feedback{}).Where("user_id = ?", target.ID).Count(&owned).Error)
	assert.Equal(t, int64(2), owned)
	assert.Equal(t, int64(3), countRows(t, env.db, &models.Feedback{}))

	assert.Nil(t, reloadUser(t, env.db, source.ID))
	assert.NotNil(t, reloadUser(t, env.db, target.ID))
}

func TestAccountMerger_RejectsInvalidPairs(t *testing.T) {
	env := newIdentityTestEnv(t)
	ctx := context.Background()
	user := createWebUser(t, env.db, "web", "web@example.com")

	_, err := env.merger.Merge(ctx, user, user)
	require.ErrorIs(t, err, ErrMergeSameAccount)

	_, err = env.merger.Merge(ctx, nil, user)
	require.ErrorIs(t, err, ErrMergeNilAccount)

	gone := &models.User{ID: 9999}
	_, err = env.merger.Merge(ctx, gone, user)
	require.ErrorIs(t, err, ErrMergeAccountGone)
}

func TestAccountMerger_RollsBackOnFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	merger := NewAccountMerger(db,
		repository.NewUserRepository(db),
		repository.NewProcessRepository(db),
		repository.NewFeedbackRepository(db),
	)

	userColumns := []string{"id", "username"}
	processColumns := []string{"id", "user_id", "company_name", "company_key", "position_key"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(1, "ghost"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(2, "web"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "processes"`)).
		WillReturnRows(sqlmock.NewRows(processColumns))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "processes"`)).
		WillReturnRows(sqlmock.NewRows(processColumns).AddRow(10, 1, "Acme", "acme", "<none>"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "processes"`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err = merger.Merge(context.Background(), &models.User{ID: 1}, &models.User{ID: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	require.NoError(t, mock.ExpectationsWereMet())
}
