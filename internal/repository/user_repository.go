package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/process-tracker-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db        *gorm.DB
	forUpdate bool
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

// WithTx binds the repository to tx and makes lookups take row locks.
func (r *GormUserRepository) WithTx(tx *gorm.DB) UserRepository {
	return &GormUserRepository{db: tx, forUpdate: true}
}

func (r *GormUserRepository) query(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx)
	if r.forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r *GormUserRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := r.query(ctx).Where(query, args...).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create creates a new user
func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Update persists every column of user
func (r *GormUserRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(user).Error; err != nil {
		return fmt.Errorf("failed to update user id %d: %w", user.ID, err)
	}
	return nil
}

// Delete permanently removes a user row
func (r *GormUserRepository) Delete(ctx context.Context, id uint64) error {
	if err := r.db.WithContext(ctx).Delete(&models.User{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete user id %d: %w", id, err)
	}
	return nil
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	user, err := r.findOne(ctx, "id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by id %d: %w", id, err)
	}
	return user, nil
}

// FindByEmail finds a user by email, ignoring case
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	user, err := r.findOne(ctx, "LOWER(email) = ?", strings.ToLower(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email %s: %w", email, err)
	}
	return user, nil
}

// FindByUsername finds a user by username, ignoring case
func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil
	}
	user, err := r.findOne(ctx, "LOWER(username) = ?", strings.ToLower(username))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username %s: %w", username, err)
	}
	return user, nil
}

// FindPasswordUserByUsername finds the password account holding username
func (r *GormUserRepository) FindPasswordUserByUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil
	}
	user, err := r.findOne(ctx, "LOWER(username) = ? AND hashed_password IS NOT NULL", strings.ToLower(username))
	if err != nil {
		return nil, fmt.Errorf("failed to find password user by username %s: %w", username, err)
	}
	return user, nil
}

// FindOtherByUsername finds a user other than excludeID holding username
func (r *GormUserRepository) FindOtherByUsername(ctx context.Context, username string, excludeID uint64) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil
	}
	user, err := r.findOne(ctx, "LOWER(username) = ? AND id <> ?", strings.ToLower(username), excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username %s: %w", username, err)
	}
	return user, nil
}

// FindByDiscordID finds a user by Discord ID
func (r *GormUserRepository) FindByDiscordID(ctx context.Context, discordID string) (*models.User, error) {
	if discordID == "" {
		return nil, nil
	}
	user, err := r.findOne(ctx, "discord_id = ?", discordID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by discord id %s: %w", discordID, err)
	}
	return user, nil
}

// FindByGoogleID finds a user by Google ID
func (r *GormUserRepository) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	if googleID == "" {
		return nil, nil
	}
	user, err := r.findOne(ctx, "google_id = ?", googleID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by google id %s: %w", googleID, err)
	}
	return user, nil
}

// ClearDiscordID detaches the Discord identity from a user
func (r *GormUserRepository) ClearDiscordID(ctx context.Context, id uint64) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("discord_id", gorm.Expr("NULL")).Error
	if err != nil {
		return fmt.Errorf("failed to clear discord id for user %d: %w", id, err)
	}
	return nil
}

// TouchLastLogin records a successful login
func (r *GormUserRepository) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("last_login", at).Error
	if err != nil {
		return fmt.Errorf("failed to update last login for user %d: %w", id, err)
	}
	return nil
}
