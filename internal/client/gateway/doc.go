// Package gateway is the client's credential gateway: it wraps the hosted
// identity provider's primitives (password sign-in, one-time codes, token
// refresh, password change, sign-out) and the profile-store read.
//
// # Overview
//
// Gateway is the transport-agnostic contract; GRPCGateway implements it over
// a gRPC connection using the payloads described in package wire. The
// gateway owns the current tokens: a successful sign-in or code verification
// installs them, Adopt installs tokens restored from disk, SignOut drops
// them.
//
// # Tokens
//
// Calls that need a bearer token go through a unary client interceptor that
// attaches the access token, refreshes it first when its exp claim has
// passed, and refreshes-and-retries once when the backend answers
// TOKEN_EXPIRED. Concurrent refreshes are collapsed into one. Rotated tokens
// are reported to Listener.SessionRefreshed; a refused refresh drops the
// tokens and calls Listener.SessionExpired.
//
// # Error Handling
//
// Every failure maps to one of the sentinels in errors.go (match with
// errors.Is) or to *EmailUnverifiedError / *WeakPasswordError (match with
// errors.As). Anything the backend does not classify is reported as
// ErrTransient with the original error kept in the chain.
package gateway
