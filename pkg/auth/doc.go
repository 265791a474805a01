// Package auth provides API tokens for non-browser clients.
//
// Tokens have the form weavy_<base64url(32 random bytes)>. Only the SHA-256
// hash and a short display prefix are stored; the plaintext is shown once at
// creation.
//
//	store := auth.NewTokenStore(db)
//	record, plaintext, err := store.Create(ctx, userID, "ci", nil)
//
// Requests present the token as "Authorization: Bearer weavy_...". Validate
// maps it back to the owning user and updates last_used_at:
//
//	record, err := store.Validate(ctx, plaintext)
//	if errors.Is(err, auth.ErrInvalidToken) {
//		// malformed, unknown, revoked or expired
//	}
//
// Browser users authenticate with session cookies instead (see package sso).
package auth
