// Package auth authenticates API callers against the external identity provider.
//
// The service does not manage users or passwords. It trusts bearer tokens
// minted by the identity provider (HS256 JWTs) and only needs the subject and
// e-mail from them. Middleware verifies the token and stores an Identity in the
// request context; handlers read it back with IdentityFromContext.
package auth
