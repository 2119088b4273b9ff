package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yukikurage/process-tracker-api/internal/constants"
	"github.com/yukikurage/process-tracker-api/internal/lock"
	"github.com/yukikurage/process-tracker-api/internal/metrics"
	"github.com/yukikurage/process-tracker-api/internal/models"
	"github.com/yukikurage/process-tracker-api/internal/repository"
	"gorm.io/gorm"
)

var ErrInvalidGhostIdentity = errors.New("discord id and username are required")

// GhostAccountFactory creates Discord-only accounts on first bot use.
type GhostAccountFactory struct {
	db     *gorm.DB
	users  repository.UserRepository
	locker lock.Locker
}

func NewGhostAccountFactory(db *gorm.DB, users repository.UserRepository, locker lock.Locker) *GhostAccountFactory {
	return &GhostAccountFactory{
		db:     db,
		users:  users,
		locker: locker,
	}
}

// GetOrCreate returns the account owning discordID, creating a ghost when
// none exists. A changed Discord username is written back. Repeated calls
// with the same id always return the same account.
func (f *GhostAccountFactory) GetOrCreate(ctx context.Context, discordID, username string) (*models.User, error) {
	discordID = strings.TrimSpace(discordID)
	username = strings.TrimSpace(username)
	if discordID == "" || username == "" {
		return nil, ErrInvalidGhostIdentity
	}

	release, err := f.locker.Acquire(ctx, identityLockKey(ProviderDiscord, discordID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdentityBusy, err)
	}
	defer release()

	user, err := f.getOrCreateOnce(ctx, discordID, username)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another writer created the row between our lookup and insert.
		user, err = f.getOrCreateOnce(ctx, discordID, username)
	}
	return user, err
}

func (f *GhostAccountFactory) getOrCreateOnce(ctx context.Context, discordID, username string) (*models.User, error) {
	var user *models.User
	created := false

	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := f.users.WithTx(tx)

		existing, err := users.FindByDiscordID(ctx, discordID)
		if err != nil {
			return err
		}

		if existing != nil {
			user = existing
			if existing.Username == username {
				return nil
			}
			existing.Username = username
			return users.Update(ctx, existing)
		}

		user = &models.User{
			DiscordID:          models.StringPtr(discordID),
			Username:           username,
			CommentsEnabled:    true,
			DiscordPrivacyMode: constants.PrivacyModePrivate,
		}
		created = true
		return users.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	if created {
		metrics.GhostAccountsCreated.Inc()
		slog.InfoContext(ctx, "ghost account created", "user_id", user.ID, "discord_id", discordID)
	}

	return user, nil
}
