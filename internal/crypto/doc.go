// Package crypto exposes the minimal primitives used by keybridge.
//
// Contents
//
//   - secp256k1 key generation and parsing, x-only public keys (GenerateKey,
//     ParseSecret, ParsePubKey)
//   - NIP-01 event serialization, ids and BIP-340 signatures (Serialize,
//     EventID, SignEvent, VerifyEvent)
//   - NIP-44 v2 payload encryption (ConversationKey, EncryptNIP44,
//     DecryptNIP44)
//   - NIP-04 legacy payload encryption (NIP04Key, EncryptNIP04, DecryptNIP04)
//   - Scheme dispatch for RPC envelopes (Encrypt, Decrypt)
//
// # Notes
//
// Public keys travel as 64 lowercase hex characters. Derived keys are wiped
// after use; callers holding a SecretKey should call Zero when done.
package crypto
