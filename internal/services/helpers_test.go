package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/process-tracker-api/internal/constants"
	"github.com/yukikurage/process-tracker-api/internal/database"
	"github.com/yukikurage/process-tracker-api/internal/lock"
	"github.com/yukikurage/process-tracker-api/internal/models"
	"github.com/yukikurage/process-tracker-api/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type identityTestEnv struct {
	db        *gorm.DB
	users     repository.UserRepository
	processes repository.ProcessRepository
	feedback  repository.FeedbackRepository
	merger    *AccountMerger
	linker    *AccountLinker
	ghosts    *GhostAccountFactory
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// Every connection to ":memory:" is a separate database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.Migrate(db))
	return db
}

func newIdentityTestEnv(t *testing.T) identityTestEnv {
	t.Helper()

	db := setupTestDB(t)
	users := repository.NewUserRepository(db)
	processes := repository.NewProcessRepository(db)
	feedback := repository.NewFeedbackRepository(db)
	locker := lock.NewLocalLocker(time.Second)
	merger := NewAccountMerger(db, users, processes, feedback)

	return identityTestEnv{
		db:        db,
		users:     users,
		processes: processes,
		feedback:  feedback,
		merger:    merger,
		linker:    NewAccountLinker(db, users, merger, locker),
		ghosts:    NewGhostAccountFactory(db, users, locker),
	}
}

func createWebUser(t *testing.T, db *gorm.DB, username, email string) *models.User {
	t.Helper()

	user := &models.User{
		Username:           username,
		Email:              models.StringPtr(email),
		CommentsEnabled:    true,
		DiscordPrivacyMode: constants.PrivacyModePrivate,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createGhostUser(t *testing.T, db *gorm.DB, username, discordID string) *models.User {
	t.Helper()

	user := &models.User{
		Username:           username,
		DiscordID:          models.StringPtr(discordID),
		CommentsEnabled:    true,
		DiscordPrivacyMode: constants.PrivacyModePrivate,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createProcess(t *testing.T, db *gorm.DB, userID uint64, company string, position *string, stageNames ...string) *models.Process {
	t.Helper()

	process := &models.Process{
		UserID:      userID,
		CompanyName: company,
		Position:    position,
	}
	require.NoError(t, db.Create(process).Error)

	for i, name := range stageNames {
		stage := &models.Stage{
			ProcessID: process.ID,
			StageName: name,
			StageDate: time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC),
			Order:     i,
		}
		require.NoError(t, db.Create(stage).Error)
	}

	return process
}

func reloadUser(t *testing.T, db *gorm.DB, id uint64) *models.User {
	t.Helper()

	user, err := repository.NewUserRepository(db).FindByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func strPtr(s string) *string {
	return &s
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}
