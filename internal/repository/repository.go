package repository

import (
	"context"
	"time"

	"github.com/yukikurage/process-tracker-api/internal/models"
	"github.com/yukikurage/process-tracker-api/internal/utils"
	"gorm.io/gorm"
)

// UserRepository is the identity registry. Its Find* lookups are the only
// supported way to ask whether an identity already exists; they return
// (nil, nil) when nothing matches so callers can act on a conflict instead of
// relying on constraint violations.
type UserRepository interface {
	// WithTx returns a repository bound to tx whose lookups lock the rows they read
	WithTx(tx *gorm.DB) UserRepository

	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// Update persists every column of user
	Update(ctx context.Context, user *models.User) error

	// Delete permanently removes a user row
	Delete(ctx context.Context, id uint64) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByEmail matches case-insensitively; empty input never matches
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// FindByUsername matches case-insensitively
	FindByUsername(ctx context.Context, username string) (*models.User, error)

	// FindPasswordUserByUsername matches case-insensitively among accounts
	// that have a password. Usernames are not unique, so ghosts may share one.
	FindPasswordUserByUsername(ctx context.Context, username string) (*models.User, error)

	// FindOtherByUsername finds a holder of username other than excludeID
	FindOtherByUsername(ctx context.Context, username string, excludeID uint64) (*models.User, error)

	// FindByDiscordID finds the owner of a Discord id
	FindByDiscordID(ctx context.Context, discordID string) (*models.User, error)

	// FindByGoogleID finds the owner of a Google id
	FindByGoogleID(ctx context.Context, googleID string) (*models.User, error)

	// ClearDiscordID detaches the Discord identity from a user
	ClearDiscordID(ctx context.Context, id uint64) error

	// TouchLastLogin records a successful login
	TouchLastLogin(ctx context.Context, id uint64, at time.Time) error
}

// ProcessRepository defines the interface for process data access
type ProcessRepository interface {
	WithTx(tx *gorm.DB) ProcessRepository

	// ListByUser returns every process owned by userID
	ListByUser(ctx context.Context, userID uint64) ([]models.Process, error)

	// ListPage returns one page of userID's processes with stages, newest first
	ListPage(ctx context.Context, userID uint64, params utils.PaginationParams) ([]models.Process, int64, error)

	// FindByID finds a process by ID with its stages in order
	FindByID(ctx context.Context, id uint64) (*models.Process, error)

	// Delete removes a process and its stages
	Delete(ctx context.Context, id uint64) error

	// Reassign moves a process to another owner
	Reassign(ctx context.Context, processID, userID uint64) error
}

// FeedbackRepository defines the interface for feedback data access
type FeedbackRepository interface {
	WithTx(tx *gorm.DB) FeedbackRepository

	// ReassignOwner moves every feedback row of fromUserID onto toUserID
	ReassignOwner(ctx context.Context, fromUserID, toUserID uint64) (int64, error)
}
