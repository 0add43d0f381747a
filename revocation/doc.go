// Package revocation keeps the Redis deny-list of tokens that were logged out
// before their natural expiry.
//
// Entries live under token:blacklist:<token> and expire exactly when the token
// itself would, so the list never outgrows the set of still-valid tokens.
package revocation
