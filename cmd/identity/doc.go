// Package identity owns user accounts: ids, username canonicalization,
// Argon2id password hashing, and the user store. The realtime core only
// reads identities; all mutation happens through this package's stores.
package identity
