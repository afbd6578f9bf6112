// Package relay implements the pub/sub transport the bunker client runs on.
//
// Pool is the production domain.RelayPool: one gorilla/websocket connection
// per relay URL speaking NIP-01 (EVENT, REQ, CLOSE). Each subscription has a
// single id across all of its relays and drops events it has already seen.
//
// Hub is an in-memory relay. Server exposes a Hub over websocket for local
// development (see cmd/relay), and MemoryPool wires Hubs directly to callers
// so tests can run a client and a simulated signer in one process.
//
// Ephemeral kinds (20000-29999, which includes NIP-46 traffic) are forwarded
// but never stored.
package relay
