// Package password hashes and verifies user passwords.
//
// Argon2 produces PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Bcrypt covers hashes carried over from older deployments, and Migrating
// combines the two so stored bcrypt hashes are rewritten as argon2id after
// the next successful login. Length and format policy belongs to the caller.
package password
