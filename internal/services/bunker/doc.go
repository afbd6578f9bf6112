// Package bunker is the NIP-46 remote-signer client.
//
// An Engine pairs with a signer from a bunker:// or nostrconnect:// token,
// persists the resulting session, and resumes it on the next start without
// a round trip. Requests are JSON {id, method, params} envelopes, encrypted
// to the signer (NIP-44 by default), wrapped in kind-24133 events signed by a
// per-session client key and published to every session relay. Responses
// are matched to requests by id alone, so calls may be pipelined and answered
// out of order.
//
// While a session is ready the engine's Facade is installed in the provider
// registry; it offers the usual get-pubkey, sign and encrypt/decrypt
// operations, each a single RPC.
package bunker
