// Package main runs the in-memory websocket relay used by keybridge during
// development and tests. It speaks the relay side of NIP-01.
//
// Protocol
//
//	["EVENT", <event>]            publish; answered with ["OK", id, accepted, msg]
//	["REQ", <sub id>, <filter>…]  subscribe; stored matches, then ["EOSE", sub id]
//	["CLOSE", <sub id>]           end a subscription
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Event ids and Schnorr signatures are verified; invalid events are
//     refused with OK false.
//   - Ephemeral kinds (20000-29999, including NIP-46 traffic) are forwarded
//     to live subscriptions but never stored.
//   - Filters support kinds, #p and since.
//   - The default listen address is :7447.
//
// The relay never sees plaintext or private keys; NIP-46 payloads are
// end-to-end encrypted between client and signer.
package main
