// Package auth issues and verifies API bearer tokens for the feeder core.
//
// Tokens are HS256 JWTs carrying a subject and one of two roles:
//   - viewer: read status, attributes, plans and the feed log, and follow events
//   - admin: everything a viewer can do plus feeding, settings, plans and device actions
//
// Permissions are a static role mapping; there are no user accounts.
// Tokens are minted with `plaf203 token` and validated by signature only.
package auth
