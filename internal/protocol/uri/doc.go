// Package uri parses and formats NIP-46 pairing tokens (bunker:// and
// nostrconnect://) into domain.ConnectionDescriptor values.
package uri
