package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/process-tracker-api/internal/constants"
	"github.com/yukikurage/process-tracker-api/internal/dto"
	apierrors "github.com/yukikurage/process-tracker-api/internal/errors"
	"github.com/yukikurage/process-tracker-api/internal/middleware"
	"github.com/yukikurage/process-tracker-api/internal/services"
	"github.com/yukikurage/process-tracker-api/internal/utils"
)

const oauthNonceBytes = 16

// oauthState is the JSON carried through the provider in the state parameter.
type oauthState struct {
	UserID *uint64 `json:"userId,omitempty"`
	Nonce  string  `json:"nonce,omitempty"`
}

func parseOAuthState(raw string) (oauthState, error) {
	var state oauthState
	if raw == "" {
		return state, nil
	}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return state, err
	}
	return state, nil
}

// StartOAuth redirects to the provider's consent screen. With link=1 the
// authenticated caller becomes the link target.
func (h *AuthHandler) StartOAuth(provider services.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := h.configuredProvider(c, provider)
		if !ok {
			return
		}

		nonce, err := utils.GenerateNonce(oauthNonceBytes)
		if err != nil {
			apierrors.InternalError(c, "Failed to start login")
			return
		}
		state := oauthState{Nonce: nonce}

		session := sessions.Default(c)
		session.Set(constants.SessionKeyOAuthNonce, nonce)
		session.Delete(constants.SessionKeyOAuthLinkUser)

		if c.Query("link") == "1" {
			userID, exists := middleware.GetUserID(c)
			if !exists {
				apierrors.Unauthorized(c, "Linking requires an authenticated user")
				return
			}
			state.UserID = &userID
			session.Set(constants.SessionKeyOAuthLinkUser, userID)
		}

		if err := session.Save(); err != nil {
			apierrors.InternalError(c, "Failed to save session")
			return
		}

		encoded, err := json.Marshal(state)
		if err != nil {
			apierrors.InternalError(c, "Failed to start login")
			return
		}

		c.Redirect(http.StatusFound, p.AuthCodeURL(string(encoded), h.callbackURL(provider)))
	}
}

// Callback completes the authorization-code flow, links the identity and
// redirects to the frontend with an access token for the surviving account.
func (h *AuthHandler) Callback(provider services.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Query("code")
		if code == "" {
			apierrors.BadRequest(c, "Missing authorization code")
			return
		}

		state, err := parseOAuthState(c.Query("state"))
		if err != nil {
			apierrors.BadRequest(c, "Invalid OAuth state")
			return
		}

		target, ok := h.resolveLinkTarget(c, state)
		if !ok {
			apierrors.BadRequest(c, "Invalid OAuth state")
			return
		}

		p, ok := h.configuredProvider(c, provider)
		if !ok {
			return
		}

		profile, err := p.Authenticate(c.Request.Context(), code, h.callbackURL(provider))
		if err != nil {
			respondAuthError(c, err)
			return
		}

		result, err := h.linker.Link(c.Request.Context(), services.LinkEvidence{
			Provider:             provider,
			ProviderID:           profile.ID,
			Email:                profile.Email,
			Username:             profile.Username,
			ExplicitTargetUserID: target,
		})
		if err != nil {
			respondAuthError(c, err)
			return
		}

		resp, ok := h.issueToken(c, result.User.ID)
		if !ok {
			return
		}

		redirect := fmt.Sprintf("%s/auth/%s/callback?token=%s", h.cfg.FrontendURL, provider, url.QueryEscape(resp.AccessToken))
		c.Redirect(http.StatusFound, redirect)
	}
}

// LinkDiscord links a Discord account to the authenticated user using a code
// obtained by the frontend.
func (h *AuthHandler) LinkDiscord(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	code := c.Query("code")
	if code == "" {
		apierrors.BadRequest(c, "Missing authorization code")
		return
	}

	p, ok := h.configuredProvider(c, services.ProviderDiscord)
	if !ok {
		return
	}

	// The frontend received this code on its own callback page.
	redirectURL := fmt.Sprintf("%s/auth/%s/callback", h.cfg.FrontendURL, services.ProviderDiscord)
	profile, err := p.Authenticate(c.Request.Context(), code, redirectURL)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	result, err := h.linker.Link(c.Request.Context(), services.LinkEvidence{
		Provider:             services.ProviderDiscord,
		ProviderID:           profile.ID,
		Email:                profile.Email,
		Username:             profile.Username,
		ExplicitTargetUserID: &userID,
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}

	token, ok := h.issueToken(c, result.User.ID)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, dto.LinkResponse{
		TokenResponse: token,
		Message:       "Discord account linked successfully",
		User:          dto.ToUserDTO(*result.User),
		Merged:        result.Merge != nil,
	})
}

// DisconnectDiscord removes the Discord identity from the caller's account.
func (h *AuthHandler) DisconnectDiscord(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	if err := h.linker.Disconnect(c.Request.Context(), userID, services.ProviderDiscord); err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Discord account disconnected successfully",
	})
}

// resolveLinkTarget returns the explicit link target for a callback. The
// target only ever comes from the session bound by StartOAuth?link=1, after
// the state has echoed the session nonce. A userId in the state alone is
// ignored.
func (h *AuthHandler) resolveLinkTarget(c *gin.Context, state oauthState) (*uint64, bool) {
	session := sessions.Default(c)
	expected, _ := session.Get(constants.SessionKeyOAuthNonce).(string)
	if expected == "" {
		if state.UserID != nil {
			slog.WarnContext(c.Request.Context(), "ignoring link target without session nonce", "state_user_id", *state.UserID)
		}
		return nil, true
	}

	if state.Nonce != expected {
		return nil, false
	}

	linkUser, hasLinkUser := session.Get(constants.SessionKeyOAuthLinkUser).(uint64)
	session.Delete(constants.SessionKeyOAuthNonce)
	session.Delete(constants.SessionKeyOAuthLinkUser)
	if err := session.Save(); err != nil {
		slog.WarnContext(c.Request.Context(), "failed to clear oauth nonce", "error", err)
	}

	if hasLinkUser {
		return &linkUser, true
	}
	return nil, true
}

func (h *AuthHandler) configuredProvider(c *gin.Context, provider services.Provider) (services.IdentityProvider, bool) {
	p, ok := h.providers[provider]
	if !ok || !p.Configured() {
		apierrors.InternalErrorWithCode(c, apierrors.ErrCodeProviderNotConfigured,
			fmt.Sprintf("%s OAuth not configured", provider.Label()))
		return nil, false
	}
	return p, true
}

func (h *AuthHandler) callbackURL(provider services.Provider) string {
	return fmt.Sprintf("%s/auth/%s/callback", h.cfg.APIURL, provider)
}
