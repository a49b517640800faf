// Package auth authenticates librarians for the mutating API routes.
//
// Librarian accounts come from configuration as username plus Argon2id
// hash in PHC format. A successful login yields a short-lived HS256 JWT
// that is validated by signature only.
package auth
