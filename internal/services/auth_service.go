package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yukikurage/process-tracker-api/internal/constants"
	"github.com/yukikurage/process-tracker-api/internal/models"
	"github.com/yukikurage/process-tracker-api/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameRequired   = errors.New("username is required")
	ErrDisplayNameTooLong = fmt.Errorf("display name must be at most %d characters", constants.MaxDisplayNameLength)
	ErrInvalidPrivacyMode = errors.New("discord privacy mode must be 'private' or 'public'")
)

// AuthService handles password login and profile management.
type AuthService struct {
	userRepo    repository.UserRepository
	adminEmails map[string]struct{}
	now         func() time.Time
}

// NewAuthService creates a new AuthService. adminEmails are compared
// case-insensitively.
func NewAuthService(userRepo repository.UserRepository, adminEmails []string) *AuthService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			admins[email] = struct{}{}
		}
	}

	return &AuthService{
		userRepo:    userRepo,
		adminEmails: admins,
		now:         time.Now,
	}
}

// LoginInput holds the credentials for authentication. Identifier is either
// a username or an email.
type LoginInput struct {
	Identifier string
	Password   string
}

// Login verifies credentials, records the login time and returns the user.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*models.User, error) {
	user, err := s.userRepo.FindPasswordUserByUsername(ctx, input.Identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		user, err = s.userRepo.FindByEmail(ctx, input.Identifier)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
	}

	// OAuth and ghost accounts have no password and cannot log in this way.
	if user == nil || user.HashedPassword == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.HashedPassword), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now

	return user, nil
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return user, nil
}

// ProfileUpdate carries the optional fields of a profile patch.
type ProfileUpdate struct {
	Username           *string
	DisplayName        *string
	IsAnonymous        *bool
	CommentsEnabled    *bool
	DiscordPrivacyMode *string
}

// UpdateProfile applies the non-nil fields of input to the user.
func (s *AuthService) UpdateProfile(ctx context.Context, id uint64, input ProfileUpdate) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, ErrUsernameRequired
		}
		if username != user.Username {
			owner, err := s.userRepo.FindOtherByUsername(ctx, username, user.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to check username: %w", err)
			}
			if owner != nil {
				return nil, ErrUsernameTaken
			}
			user.Username = username
		}
	}

	if input.DisplayName != nil {
		displayName := strings.TrimSpace(*input.DisplayName)
		if utf8.RuneCountInString(displayName) > constants.MaxDisplayNameLength {
			return nil, ErrDisplayNameTooLong
		}
		user.DisplayName = models.StringPtr(displayName)
	}

	if input.IsAnonymous != nil {
		user.IsAnonymous = *input.IsAnonymous
	}

	if input.CommentsEnabled != nil {
		user.CommentsEnabled = *input.CommentsEnabled
	}

	if input.DiscordPrivacyMode != nil {
		mode := *input.DiscordPrivacyMode
		if mode != constants.PrivacyModePrivate && mode != constants.PrivacyModePublic {
			return nil, ErrInvalidPrivacyMode
		}
		user.DiscordPrivacyMode = mode
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// IsAdmin reports whether the user's email is in the admin list. Accounts
// without an email are never admins.
func (s *AuthService) IsAdmin(ctx context.Context, id uint64) (bool, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	if !user.HasEmail() {
		return false, nil
	}

	_, ok := s.adminEmails[strings.ToLower(*user.Email)]
	return ok, nil
}
