package handlers

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/process-tracker-api/internal/constants"
	"github.com/yukikurage/process-tracker-api/internal/dto"
	apierrors "github.com/yukikurage/process-tracker-api/internal/errors"
	"github.com/yukikurage/process-tracker-api/internal/middleware"
	"github.com/yukikurage/process-tracker-api/internal/services"
)

const botSecretHeader = "X-Bot-Secret"

// AuthHandlerConfig holds the URLs and secrets the auth endpoints need.
type AuthHandlerConfig struct {
	FrontendURL     string
	APIURL          string
	BotSharedSecret string
}

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	cfg         AuthHandlerConfig
	authService *services.AuthService
	ghosts      *services.GhostAccountFactory
	linker      *services.AccountLinker
	tokens      services.TokenService
	providers   map[services.Provider]services.IdentityProvider
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(
	cfg AuthHandlerConfig,
	authService *services.AuthService,
	ghosts *services.GhostAccountFactory,
	linker *services.AccountLinker,
	tokens services.TokenService,
	providers ...services.IdentityProvider,
) *AuthHandler {
	byName := make(map[services.Provider]services.IdentityProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}

	return &AuthHandler{
		cfg:         cfg,
		authService: authService,
		ghosts:      ghosts,
		linker:      linker,
		tokens:      tokens,
		providers:   byName,
	}
}

// Register is kept so old clients get an explicit answer.
func (h *AuthHandler) Register(c *gin.Context) {
	apierrors.Gone(c, "Password registration is no longer supported. Please sign in with Discord or Google.")
}

// Login authenticates with a username or email and a password.
func (h *AuthHandler) Login(c *gin.Context) {
	type LoginRequest struct {
		Username string `form:"username" binding:"required"`
		Password string `form:"password" binding:"required"`
	}

	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		apierrors.BadRequest(c, "Username and password are required")
		return
	}

	user, err := h.authService.Login(c.Request.Context(), services.LoginInput{
		Identifier: req.Username,
		Password:   req.Password,
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}

	h.respondWithToken(c, user.ID)
}

// BotToken issues a token for a Discord user seen by the bot, creating a
// ghost account on first contact.
func (h *AuthHandler) BotToken(c *gin.Context) {
	if h.cfg.BotSharedSecret != "" {
		got := c.GetHeader(botSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.cfg.BotSharedSecret)) != 1 {
			apierrors.Unauthorized(c, "Invalid bot credentials")
			return
		}
	}

	type BotTokenRequest struct {
		DiscordID string `json:"discord_id" binding:"required"`
		Username  string `json:"username" binding:"required"`
	}

	var req BotTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.ghosts.GetOrCreate(c.Request.Context(), req.DiscordID, req.Username)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	h.respondWithToken(c, user.ID)
}

// GetCurrentUser returns the authenticated user.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// UpdateCurrentUser patches the authenticated user's profile.
func (h *AuthHandler) UpdateCurrentUser(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type UpdateProfileRequest struct {
		Username           *string `json:"username" binding:"omitempty,max=100"`
		DisplayName        *string `json:"display_name"`
		IsAnonymous        *bool   `json:"is_anonymous"`
		CommentsEnabled    *bool   `json:"comments_enabled"`
		DiscordPrivacyMode *string `json:"discord_privacy_mode"`
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), userID, services.ProfileUpdate{
		Username:           req.Username,
		DisplayName:        req.DisplayName,
		IsAnonymous:        req.IsAnonymous,
		CommentsEnabled:    req.CommentsEnabled,
		DiscordPrivacyMode: req.DiscordPrivacyMode,
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// IsAdmin reports whether the authenticated user is an administrator.
func (h *AuthHandler) IsAdmin(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	isAdmin, err := h.authService.IsAdmin(c.Request.Context(), userID)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"is_admin": isAdmin})
}

func (h *AuthHandler) issueToken(c *gin.Context, userID uint64) (dto.TokenResponse, bool) {
	token, err := h.tokens.GenerateAccessToken(userID)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to sign access token", "user_id", userID, "error", err)
		apierrors.InternalError(c, "Failed to create access token")
		return dto.TokenResponse{}, false
	}

	return dto.TokenResponse{
		AccessToken: token,
		TokenType:   constants.TokenTypeBearer,
	}, true
}

func (h *AuthHandler) respondWithToken(c *gin.Context, userID uint64) {
	resp, ok := h.issueToken(c, userID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

func respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrIdentityConflict):
		apierrors.BadRequestWithCode(c, apierrors.ErrCodeIdentityConflict, err.Error())
	case errors.Is(err, services.ErrMissingProviderEmail):
		apierrors.BadRequestWithCode(c, apierrors.ErrCodeMissingProviderEmail, "Provider account email not available")
	case errors.Is(err, services.ErrProviderNotLinked):
		apierrors.BadRequestWithCode(c, apierrors.ErrCodeProviderNotLinked, "Discord account is not connected")
	case errors.Is(err, services.ErrProviderExchange):
		slog.ErrorContext(c.Request.Context(), "provider exchange failed", "error", err)
		apierrors.InternalErrorWithCode(c, apierrors.ErrCodeProviderExchangeFailed, "Failed to authenticate with provider")
	case errors.Is(err, services.ErrProviderNotConfigured):
		apierrors.InternalErrorWithCode(c, apierrors.ErrCodeProviderNotConfigured, err.Error())
	case errors.Is(err, services.ErrIdentityBusy):
		apierrors.ServiceUnavailable(c, "Account is being updated, please retry")
	case errors.Is(err, services.ErrInvalidGhostIdentity),
		errors.Is(err, services.ErrMissingProviderID),
		errors.Is(err, services.ErrUsernameRequired),
		errors.Is(err, services.ErrDisplayNameTooLong),
		errors.Is(err, services.ErrInvalidPrivacyMode):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrUsernameTaken):
		apierrors.Conflict(c, "Username already taken")
	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.RespondWithError(c, http.StatusUnauthorized, apierrors.NewAPIError(apierrors.ErrCodeInvalidCredentials, "Incorrect username or password"))
	case errors.Is(err, services.ErrUserNotFound):
		// Tokens may outlive accounts absorbed by a merge.
		apierrors.Unauthorized(c, "User not found")
	default:
		slog.ErrorContext(c.Request.Context(), "auth request failed", "error", err)
		apierrors.InternalError(c, "Internal server error")
	}
}
