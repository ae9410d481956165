package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// TokenType is the token_type reported next to issued token pairs.
const TokenType = "bearer"

// PublicAuthFailureMessage is the only message returned to callers for
// failed authentication.
const PublicAuthFailureMessage = "invalid credentials"
