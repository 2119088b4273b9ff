package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/process-tracker-api/internal/constants"
	"github.com/yukikurage/process-tracker-api/internal/database"
	"github.com/yukikurage/process-tracker-api/internal/models"
	"github.com/yukikurage/process-tracker-api/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.Migrate(db))
	return db
}

func newUser(username string, email, discordID *string) *models.User {
	return &models.User{
		Username:           username,
		Email:              email,
		DiscordID:          discordID,
		CommentsEnabled:    true,
		DiscordPrivacyMode: constants.PrivacyModePrivate,
	}
}

func TestUserRepository_Lookups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := newUser("MixedCase", models.StringPtr("Mixed@Example.com"), models.StringPtr("123"))
	require.NoError(t, repo.Create(ctx, user))
	require.NoError(t, db.Model(user).Update("google_id", "g-1").Error)

	tests := []struct {
		name   string
		lookup func() (*models.User, error)
		found  bool
	}{
		{"email ignores case", func() (*models.User, error) { return repo.FindByEmail(ctx, "mixed@example.COM") }, true},
		{"email trims spaces", func() (*models.User, error) { return repo.FindByEmail(ctx, " mixed@example.com ") }, true},
		{"empty email", func() (*models.User, error) { return repo.FindByEmail(ctx, "") }, false},
		{"unknown email", func() (*models.User, error) { return repo.FindByEmail(ctx, "other@example.com") }, false},
		{"username ignores case", func() (*models.User, error) { return repo.FindByUsername(ctx, "mixedcase") }, true},
		{"discord id", func() (*models.User, error) { return repo.FindByDiscordID(ctx, "123") }, true},
		{"empty discord id", func() (*models.User, error) { return repo.FindByDiscordID(ctx, "") }, false},
		{"google id", func() (*models.User, error) { return repo.FindByGoogleID(ctx, "g-1") }, true},
		{"by id", func() (*models.User, error) { return repo.FindByID(ctx, user.ID) }, true},
		{"unknown id", func() (*models.User, error) { return repo.FindByID(ctx, user.ID+1) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.lookup()
			require.NoError(t, err)
			if !tt.found {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, user.ID, got.ID)
		})
	}
}

func TestUserRepository_SharedUsername(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	ghost := newUser("Sam", nil, models.StringPtr("1"))
	require.NoError(t, repo.Create(ctx, ghost))
	web := newUser("sam", models.StringPtr("sam@example.com"), nil)
	web.HashedPassword = models.StringPtr("hash")
	require.NoError(t, repo.Create(ctx, web))

	first, err := repo.FindByUsername(ctx, "SAM")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, ghost.ID, first.ID)

	withPassword, err := repo.FindPasswordUserByUsername(ctx, "SAM")
	require.NoError(t, err)
	require.NotNil(t, withPassword)
	assert.Equal(t, web.ID, withPassword.ID)

	other, err := repo.FindOtherByUsername(ctx, "sam", ghost.ID)
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Equal(t, web.ID, other.ID)

	other, err = repo.FindOtherByUsername(ctx, "nobody", ghost.ID)
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestUserRepository_EmailUniqueIgnoringCase(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser("first", models.StringPtr("same@example.com"), nil)))

	err := repo.Create(ctx, newUser("second", models.StringPtr("SAME@example.com"), nil))
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// Ghosts carry no email, so any number of them may exist.
	require.NoError(t, repo.Create(ctx, newUser("ghost1", nil, models.StringPtr("1"))))
	require.NoError(t, repo.Create(ctx, newUser("ghost2", nil, models.StringPtr("2"))))

	err = repo.Create(ctx, newUser("ghost3", nil, models.StringPtr("1")))
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestUserRepository_ClearDiscordIDAndTouchLastLogin(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := newUser("web", models.StringPtr("web@example.com"), models.StringPtr("123"))
	require.NoError(t, repo.Create(ctx, user))

	require.NoError(t, repo.ClearDiscordID(ctx, user.ID))
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.TouchLastLogin(ctx, user.ID, at))

	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DiscordID)
	require.NotNil(t, got.LastLogin)
	assert.True(t, at.Equal(*got.LastLogin))

	found, err := repo.FindByDiscordID(ctx, "123")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestProcessRepository_KeyIsUniquePerUser(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewProcessRepository(db)
	ctx := context.Background()

	alice := newUser("alice", models.StringPtr("alice@example.com"), nil)
	bob := newUser("bob", models.StringPtr("bob@example.com"), nil)
	require.NoError(t, users.Create(ctx, alice))
	require.NoError(t, users.Create(ctx, bob))

	require.NoError(t, db.Create(&models.Process{UserID: alice.ID, CompanyName: "Acme"}).Error)
	require.NoError(t, db.Create(&models.Process{UserID: bob.ID, CompanyName: "Acme"}).Error)

	err := db.Create(&models.Process{UserID: alice.ID, CompanyName: " ACME ", Position: models.StringPtr("")}).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	processes, total, err := repo.ListPage(ctx, alice.ID, utils.PaginationParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, processes, 1)
	assert.Equal(t, "acme", processes[0].CompanyKey)
	assert.Equal(t, models.PositionNone, processes[0].PositionKey)
}

func TestProcessRepository_DeleteAndReassign(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewProcessRepository(db)
	ctx := context.Background()

	alice := newUser("alice", models.StringPtr("alice@example.com"), nil)
	bob := newUser("bob", models.StringPtr("bob@example.com"), nil)
	require.NoError(t, users.Create(ctx, alice))
	require.NoError(t, users.Create(ctx, bob))

	kept := &models.Process{UserID: alice.ID, CompanyName: "Acme"}
	dropped := &models.Process{UserID: alice.ID, CompanyName: "Globex"}
	require.NoError(t, db.Create(kept).Error)
	require.NoError(t, db.Create(dropped).Error)
	require.NoError(t, db.Create(&models.Stage{ProcessID: dropped.ID, StageName: "Applied", StageDate: time.Now()}).Error)

	require.NoError(t, repo.Delete(ctx, dropped.ID))
	_, err := repo.FindByID(ctx, dropped.ID)
	require.ErrorIs(t, err, ErrProcessNotFound)

	var stages int64
	require.NoError(t, db.Model(&models.Stage{}).Where("process_id = ?", dropped.ID).Count(&stages).Error)
	assert.Zero(t, stages)

	require.NoError(t, repo.Reassign(ctx, kept.ID, bob.ID))
	moved, err := repo.ListByUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, kept.ID, moved[0].ID)
}
