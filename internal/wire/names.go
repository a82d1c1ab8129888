package wire

// Service names.
const (
	IdentityService = "shopkeeper.identity.v1.IdentityService"
	ProfileService  = "shopkeeper.profiles.v1.ProfileService"
)

// Full method names as used by grpc.ClientConn.Invoke.
const (
	MethodSignInWithPassword = "/" + IdentityService + "/SignInWithPassword"
	MethodRequestOTP         = "/" + IdentityService + "/RequestOTP"
	MethodVerifyOTP          = "/" + IdentityService + "/VerifyOTP"
	MethodRefreshSession     = "/" + IdentityService + "/RefreshSession"
	MethodChangePassword     = "/" + IdentityService + "/ChangePassword"
	MethodSignOut            = "/" + IdentityService + "/SignOut"
	MethodGetProfile         = "/" + ProfileService + "/GetProfile"
)

// AccessTokenHeaderName is the metadata key carrying the bearer access token.
const AccessTokenHeaderName = "access_token"

// Payload field names.
const (
	FieldIdentifier    = "identifier"
	FieldPassword      = "password"
	FieldNewPassword   = "new_password"
	FieldEmail         = "email"
	FieldCode          = "code"
	FieldIdentityID    = "identity_id"
	FieldEmailVerified = "email_verified"
	FieldAccessToken   = "access_token"
	FieldRefreshToken  = "refresh_token"
	FieldExpiresAt     = "expires_at"
	FieldFound         = "found"
	FieldProfileID     = "id"
	FieldName          = "name"
	FieldRole          = "role"
	FieldActive        = "active"
	FieldPhotoURL      = "photo_url"
)

// ErrorDomain is the ErrorInfo domain used by the backend.
const ErrorDomain = "shopkeeper"

// ErrorInfo reasons.
const (
	ReasonInvalidCredentials   = "INVALID_CREDENTIALS"
	ReasonAccountInactive      = "ACCOUNT_INACTIVE"
	ReasonEmailUnverified      = "EMAIL_UNVERIFIED"
	ReasonInvalidOrExpiredCode = "INVALID_OR_EXPIRED_CODE"
	ReasonWeakPassword         = "WEAK_PASSWORD"
	ReasonTokenExpired         = "TOKEN_EXPIRED"
	ReasonSessionExpired       = "SESSION_EXPIRED"
	ReasonMissingToken         = "MISSING_TOKEN"
)

// ErrorInfo metadata keys.
const (
	MetaEmail     = "email"
	MetaMinLength = "min_length"
)
