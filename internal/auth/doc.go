// Package auth provides authentication and authorisation for Amarati Core.
//
// It implements a 5-role model (owner, tenant, supervisor, provider, admin) with:
//   - Argon2id password hashing (bcrypt hashes accepted for imported accounts)
//   - Stateless JWT access/refresh pairs discriminated by a "type" claim
//   - Single-use numeric OTP codes keyed by (user, purpose) for account
//     verification and password reset
//   - A Service that runs the register, verify, resend, login, refresh and
//     password flows, returning *Error values classified by kind
//   - An Authenticator shared by the request middleware and handlers
//   - A static role→resource→action matrix from which route gates derive
//     their allowed role sets
//
// Tokens are not persisted. A token stays valid until its embedded expiry;
// logout is client-side and refresh does not revoke the previous token.
package auth
