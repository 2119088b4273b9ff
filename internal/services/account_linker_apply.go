package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yukikurage/process-tracker-api/internal/constants"
	"github.com/yukikurage/process-tracker-api/internal/lock"
	"github.com/yukikurage/process-tracker-api/internal/metrics"
	"github.com/yukikurage/process-tracker-api/internal/models"
	"github.com/yukikurage/process-tracker-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrProviderNotLinked = errors.New("provider account is not connected")
	ErrIdentityBusy      = errors.New("identity is being updated by another request")
)

// LinkResult is the account that ended up holding the identity.
type LinkResult struct {
	User   *models.User
	Action LinkActionKind
	Merge  *MergeReport
}

// AccountLinker resolves external identities to accounts and applies the
// resulting LinkAction.
type AccountLinker struct {
	db     *gorm.DB
	users  repository.UserRepository
	merger *AccountMerger
	locker lock.Locker
	now    func() time.Time
}

// NewAccountLinker creates a new AccountLinker.
func NewAccountLinker(db *gorm.DB, users repository.UserRepository, merger *AccountMerger, locker lock.Locker) *AccountLinker {
	return &AccountLinker{
		db:     db,
		users:  users,
		merger: merger,
		locker: locker,
		now:    time.Now,
	}
}

// Link decides and applies a link for ev under the identity locks of every
// key it touches. A uniqueness violation from a writer that bypassed the
// locks re-runs the decision once.
func (l *AccountLinker) Link(ctx context.Context, ev LinkEvidence) (*LinkResult, error) {
	ev = ev.normalized()

	release, err := l.locker.Acquire(ctx, linkLockKeys(ev)...)
	if err != nil {
		metrics.LinkDecisions.WithLabelValues(string(ev.Provider), "lock_timeout").Inc()
		return nil, fmt.Errorf("%w: %v", ErrIdentityBusy, err)
	}
	defer release()

	result, err := l.linkOnce(ctx, ev)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		metrics.LinkRetries.Inc()
		slog.WarnContext(ctx, "link hit a uniqueness conflict, retrying",
			"provider", ev.Provider,
			"provider_id", ev.ProviderID,
		)
		result, err = l.linkOnce(ctx, ev)
	}
	if err != nil {
		metrics.LinkDecisions.WithLabelValues(string(ev.Provider), linkFailureOutcome(err)).Inc()
		return nil, err
	}

	metrics.LinkDecisions.WithLabelValues(string(ev.Provider), string(result.Action)).Inc()
	slog.InfoContext(ctx, "identity linked",
		"provider", ev.Provider,
		"action", result.Action,
		"user_id", result.User.ID,
	)

	return result, nil
}

func (l *AccountLinker) linkOnce(ctx context.Context, ev LinkEvidence) (*LinkResult, error) {
	var result *LinkResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := l.users.WithTx(tx)

		action, err := DecideLink(ctx, users, ev)
		if err != nil {
			return err
		}

		result, err = l.apply(ctx, tx, users, action, ev)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (l *AccountLinker) apply(ctx context.Context, tx *gorm.DB, users repository.UserRepository, action LinkAction, ev LinkEvidence) (*LinkResult, error) {
	switch a := action.(type) {
	case UseExplicitTarget:
		return l.applyUseExplicitTarget(ctx, tx, users, a, ev)
	case MergeGhostIntoWeb:
		return l.applyMergeGhostIntoWeb(ctx, tx, users, a, ev)
	case PromoteGhost:
		return l.applyPromoteGhost(ctx, users, a, ev)
	case AttachToWeb:
		return l.applyAttachToWeb(ctx, users, a, ev)
	case CreateNew:
		return l.applyCreateNew(ctx, users, ev)
	default:
		return nil, fmt.Errorf("unhandled link action %T", action)
	}
}

func (l *AccountLinker) applyUseExplicitTarget(ctx context.Context, tx *gorm.DB, users repository.UserRepository, a UseExplicitTarget, ev LinkEvidence) (*LinkResult, error) {
	result := &LinkResult{User: a.Target, Action: a.Kind()}

	if a.MergeSource != nil {
		report, err := l.merger.WithTx(tx).Merge(ctx, a.MergeSource, a.Target)
		if err != nil {
			return nil, err
		}
		result.Merge = report
	}

	l.attachIdentity(a.Target, ev)
	if err := users.Update(ctx, a.Target); err != nil {
		return nil, err
	}
	return result, nil
}

func (l *AccountLinker) applyMergeGhostIntoWeb(ctx context.Context, tx *gorm.DB, users repository.UserRepository, a MergeGhostIntoWeb, ev LinkEvidence) (*LinkResult, error) {
	report, err := l.merger.WithTx(tx).Merge(ctx, a.Ghost, a.Web)
	if err != nil {
		return nil, err
	}

	l.attachIdentity(a.Web, ev)
	if err := users.Update(ctx, a.Web); err != nil {
		return nil, err
	}
	return &LinkResult{User: a.Web, Action: a.Kind(), Merge: report}, nil
}

func (l *AccountLinker) applyPromoteGhost(ctx context.Context, users repository.UserRepository, a PromoteGhost, ev LinkEvidence) (*LinkResult, error) {
	l.attachIdentity(a.Ghost, ev)
	if err := users.Update(ctx, a.Ghost); err != nil {
		return nil, err
	}
	return &LinkResult{User: a.Ghost, Action: a.Kind()}, nil
}

func (l *AccountLinker) applyAttachToWeb(ctx context.Context, users repository.UserRepository, a AttachToWeb, ev LinkEvidence) (*LinkResult, error) {
	l.attachIdentity(a.Web, ev)
	if err := users.Update(ctx, a.Web); err != nil {
		return nil, err
	}
	return &LinkResult{User: a.Web, Action: a.Kind()}, nil
}

func (l *AccountLinker) applyCreateNew(ctx context.Context, users repository.UserRepository, ev LinkEvidence) (*LinkResult, error) {
	if ev.Email == "" {
		return nil, ErrMissingProviderEmail
	}

	now := l.now()
	user := &models.User{
		Username:           fallbackUsername(ev.Username, ev.Email),
		Email:              models.StringPtr(ev.Email),
		CommentsEnabled:    true,
		DiscordPrivacyMode: constants.PrivacyModePrivate,
		LastLogin:          &now,
	}
	setProviderID(user, ev.Provider, ev.ProviderID)

	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	return &LinkResult{User: user, Action: LinkCreateNew}, nil
}

// attachIdentity writes the provider id onto the survivor. An existing email
// is never replaced and the username is only filled when empty.
func (l *AccountLinker) attachIdentity(user *models.User, ev LinkEvidence) {
	setProviderID(user, ev.Provider, ev.ProviderID)
	if !user.HasEmail() && ev.Email != "" {
		user.Email = models.StringPtr(ev.Email)
	}
	if strings.TrimSpace(user.Username) == "" && ev.Username != "" {
		user.Username = ev.Username
	}
	now := l.now()
	user.LastLogin = &now
}

// Disconnect removes the provider id from userID's own account. It never
// merges or deletes anything.
func (l *AccountLinker) Disconnect(ctx context.Context, userID uint64, provider Provider) error {
	if provider != ProviderDiscord {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	user, err := l.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.DiscordID == nil {
		return ErrProviderNotLinked
	}

	release, err := l.locker.Acquire(ctx, userLockKey(userID), identityLockKey(provider, *user.DiscordID))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIdentityBusy, err)
	}
	defer release()

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := l.users.WithTx(tx)
		current, err := users.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrUserNotFound
		}
		if current.DiscordID == nil {
			return ErrProviderNotLinked
		}
		return users.ClearDiscordID(ctx, userID)
	})
}

func setProviderID(user *models.User, provider Provider, id string) {
	switch provider {
	case ProviderDiscord:
		user.DiscordID = models.StringPtr(id)
	case ProviderGoogle:
		user.GoogleID = models.StringPtr(id)
	}
}

func fallbackUsername(username, email string) string {
	if username != "" {
		return username
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return "user"
}

func linkFailureOutcome(err error) string {
	switch {
	case errors.Is(err, ErrIdentityConflict):
		return "conflict"
	case errors.Is(err, ErrMissingProviderEmail):
		return "missing_email"
	default:
		return "error"
	}
}

func identityLockKey(provider Provider, id string) string {
	return string(provider) + ":" + id
}

func emailLockKey(email string) string {
	if email == "" {
		return ""
	}
	return "email:" + strings.ToLower(email)
}

func userLockKey(id uint64) string {
	return fmt.Sprintf("user:%d", id)
}

func linkLockKeys(ev LinkEvidence) []string {
	keys := []string{identityLockKey(ev.Provider, ev.ProviderID), emailLockKey(ev.Email)}
	if ev.ExplicitTargetUserID != nil {
		keys = append(keys, userLockKey(*ev.ExplicitTargetUserID))
	}
	return keys
}
