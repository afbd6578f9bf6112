// Package store provides durable key-value backends and the session record
// kept on top of them.
//
// Backends:
//   - FileStore: one file per key, atomic temp-file+rename writes
//   - LevelStore: a LevelDB database directory
//   - MemoryStore: process-local, for tests and --store memory
//
// Sealed wraps any backend and encrypts values with a passphrase-derived
// key (scrypt + ChaCha20-Poly1305). SessionStore serialises domain.Session
// as JSON under SessionKey.
package store
