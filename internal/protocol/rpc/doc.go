// Package rpc holds the NIP-46 request/response envelopes and the table
// that correlates responses with in-flight requests.
//
// Requests are matched by id only; responses may arrive in any order, more
// than once (one copy per relay) or not at all. Pending guarantees each
// request is settled exactly once and that no timer outlives its entry.
package rpc
