package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yukikurage/process-tracker-api/internal/models"
	"github.com/yukikurage/process-tracker-api/internal/repository"
)

var (
	ErrIdentityConflict     = errors.New("email already belongs to another account")
	ErrMissingProviderEmail = errors.New("provider did not supply an email")
	ErrMissingProviderID    = errors.New("provider did not supply an account id")
	ErrUnknownProvider      = errors.New("unknown identity provider")
)

// Provider names an external identity channel.
type Provider string

const (
	ProviderDiscord Provider = "discord"
	ProviderGoogle  Provider = "google"
)

// Label returns the provider name as shown to users.
func (p Provider) Label() string {
	switch p {
	case ProviderDiscord:
		return "Discord"
	case ProviderGoogle:
		return "Google"
	default:
		return string(p)
	}
}

// LinkEvidence is a verified external identity plus the optional account the
// user asked to link it to.
type LinkEvidence struct {
	Provider             Provider
	ProviderID           string
	Email                string
	Username             string
	ExplicitTargetUserID *uint64
}

func (e LinkEvidence) normalized() LinkEvidence {
	e.ProviderID = strings.TrimSpace(e.ProviderID)
	e.Email = strings.TrimSpace(e.Email)
	e.Username = strings.TrimSpace(e.Username)
	return e
}

// IdentityConflictError reports an email owned by an account outside the
// link being performed. It matches ErrIdentityConflict with errors.Is.
type IdentityConflictError struct {
	Provider Provider
	Email    string
	OwnerID  uint64
}

func (e *IdentityConflictError) Error() string {
	msg := fmt.Sprintf("%s email (%s) is already associated with another account.", e.Provider.Label(), e.Email)
	if e.Provider == ProviderDiscord {
		msg += " Please use a different Discord account or contact support."
	}
	return msg
}

func (e *IdentityConflictError) Is(target error) bool {
	return target == ErrIdentityConflict
}

// LinkActionKind enumerates the LinkAction variants.
type LinkActionKind string

const (
	LinkUseExplicitTarget LinkActionKind = "use_explicit_target"
	LinkMergeGhostIntoWeb LinkActionKind = "merge_ghost_into_web"
	LinkPromoteGhost      LinkActionKind = "promote_ghost"
	LinkAttachToWeb       LinkActionKind = "attach_to_web"
	LinkCreateNew         LinkActionKind = "create_new"
)

// LinkAction is the outcome of DecideLink. The set of implementations is
// closed; every consumer switches over the five concrete types.
type LinkAction interface {
	Kind() LinkActionKind
	// Absorbed returns the account deleted by the merge, or nil.
	Absorbed() *models.User
	isLinkAction()
}

// UseExplicitTarget links to the account named in the OAuth state. A
// different owner of the provider id is merged into Target first.
type UseExplicitTarget struct {
	Target      *models.User
	MergeSource *models.User
}

// MergeGhostIntoWeb absorbs the provider-id owner into the email owner.
type MergeGhostIntoWeb struct {
	Ghost *models.User
	Web   *models.User
}

// PromoteGhost upgrades the provider-id owner in place.
type PromoteGhost struct {
	Ghost *models.User
}

// AttachToWeb adds the provider id to the email owner.
type AttachToWeb struct {
	Web *models.User
}

// CreateNew creates an account from the evidence alone.
type CreateNew struct{}

func (UseExplicitTarget) Kind() LinkActionKind { return LinkUseExplicitTarget }
func (MergeGhostIntoWeb) Kind() LinkActionKind { return LinkMergeGhostIntoWeb }
func (PromoteGhost) Kind() LinkActionKind      { return LinkPromoteGhost }
func (AttachToWeb) Kind() LinkActionKind       { return LinkAttachToWeb }
func (CreateNew) Kind() LinkActionKind         { return LinkCreateNew }

func (a UseExplicitTarget) Absorbed() *models.User { return a.MergeSource }
func (a MergeGhostIntoWeb) Absorbed() *models.User { return a.Ghost }
func (PromoteGhost) Absorbed() *models.User        { return nil }
func (AttachToWeb) Absorbed() *models.User         { return nil }
func (CreateNew) Absorbed() *models.User           { return nil }

func (UseExplicitTarget) isLinkAction() {}
func (MergeGhostIntoWeb) isLinkAction() {}
func (PromoteGhost) isLinkAction()      {}
func (AttachToWeb) isLinkAction()       {}
func (CreateNew) isLinkAction()         {}

// DecideLink classifies evidence against the registry. It only reads.
//
// The account found through the provider id is always the one absorbed; the
// email owner or the explicit target always survives.
func DecideLink(ctx context.Context, registry repository.UserRepository, ev LinkEvidence) (LinkAction, error) {
	ev = ev.normalized()
	if ev.ProviderID == "" {
		return nil, ErrMissingProviderID
	}

	idOwner, err := findByProviderID(ctx, registry, ev.Provider, ev.ProviderID)
	if err != nil {
		return nil, err
	}

	emailOwner, err := registry.FindByEmail(ctx, ev.Email)
	if err != nil {
		return nil, err
	}

	if ev.ExplicitTargetUserID != nil {
		target, err := registry.FindByID(ctx, *ev.ExplicitTargetUserID)
		if err != nil {
			return nil, err
		}
		// A vanished target falls back to the implicit decision.
		if target != nil {
			return decideExplicitTarget(ev, target, idOwner, emailOwner)
		}
	}

	return decideImplicit(ev, idOwner, emailOwner)
}

func decideExplicitTarget(ev LinkEvidence, target, idOwner, emailOwner *models.User) (LinkAction, error) {
	action := UseExplicitTarget{Target: target}
	if idOwner != nil && idOwner.ID != target.ID {
		action.MergeSource = idOwner
	}

	if emailOwner != nil && emailOwner.ID != target.ID {
		absorbed := action.MergeSource != nil && action.MergeSource.ID == emailOwner.ID
		if !absorbed {
			return nil, &IdentityConflictError{Provider: ev.Provider, Email: ev.Email, OwnerID: emailOwner.ID}
		}
	}

	return action, nil
}

func decideImplicit(ev LinkEvidence, idOwner, emailOwner *models.User) (LinkAction, error) {
	switch {
	case idOwner == nil && emailOwner == nil:
		if ev.Email == "" {
			return nil, ErrMissingProviderEmail
		}
		return CreateNew{}, nil
	case idOwner == nil:
		return AttachToWeb{Web: emailOwner}, nil
	case emailOwner != nil && emailOwner.ID == idOwner.ID:
		// Both lookups hit the same row: the identity is already attached.
		return AttachToWeb{Web: emailOwner}, nil
	case emailOwner != nil:
		// The provider-id owner is absorbed whatever its kind.
		return MergeGhostIntoWeb{Ghost: idOwner, Web: emailOwner}, nil
	}

	switch idOwner.Kind() {
	case models.AccountKindWeb:
		// It keeps its own email; the provider's address is not adopted.
		return AttachToWeb{Web: idOwner}, nil
	case models.AccountKindGhost, models.AccountKindUnlinked:
		return PromoteGhost{Ghost: idOwner}, nil
	default:
		return nil, fmt.Errorf("unhandled account kind %q", idOwner.Kind())
	}
}

func findByProviderID(ctx context.Context, registry repository.UserRepository, provider Provider, id string) (*models.User, error) {
	switch provider {
	case ProviderDiscord:
		return registry.FindByDiscordID(ctx, id)
	case ProviderGoogle:
		return registry.FindByGoogleID(ctx, id)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}
