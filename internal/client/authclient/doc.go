// Package authclient is a gRPC client for auth.v1.AuthService.
//
// # Overview
//
// Client keeps the token pair of the last Login or Refresh. Its unary
// interceptor attaches the access token to every call as the access_token
// metadata entry and, when the server reports the token as expired,
// rotates the pair with the refresh token and retries the call once.
//
// # Error Handling
//
// gRPC status codes are mapped to sentinel errors that callers can match
// with errors.Is: ErrUnauthorized, ErrUnavailable, ErrConflict, ErrInvalid.
// ErrNotLoggedIn is returned locally when an operation needs tokens that
// the client does not hold.
//
// Client is safe for concurrent use.
package authclient
