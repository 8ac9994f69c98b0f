// Package password verifies login secrets against stored hashes.
//
// # Formats
//
// New hashes are argon2id in PHC string form:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Existing bcrypt hashes ($2a$, $2b$, $2y$) are accepted for verification so
// that existing user tables keep working. They always
// report [Verifier.NeedsUpgrade] so the engine can rehash them on login.
//
// # What this package must NOT do
//
//   - Store or retrieve secrets.
//   - Import any other goGate package.
//   - Log plaintext secrets or hashes.
package password
