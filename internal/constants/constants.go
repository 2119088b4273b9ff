package constants

const (
	// ContextKeyUserID is the gin context key holding the authenticated user id.
	ContextKeyUserID = "user_id"
	// ContextKeyRequestID is the gin context key holding the request id.
	ContextKeyRequestID = "request_id"

	SessionCookieName = "tracker_session"
	// SessionKeyOAuthNonce stores the nonce issued by the OAuth login endpoints.
	SessionKeyOAuthNonce = "oauth_nonce"
	// SessionKeyOAuthLinkUser stores the account an OAuth link flow targets.
	SessionKeyOAuthLinkUser = "oauth_link_user"

	TokenTypeBearer = "bearer"

	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100

	MaxDisplayNameLength = 100

	PrivacyModePrivate = "private"
	PrivacyModePublic  = "public"
)
