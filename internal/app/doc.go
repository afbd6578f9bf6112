// Package app wires application dependencies for the CLI.
//
// Load reads config.toml from the home directory over built-in defaults.
// NewWire builds the configured store backend (optionally sealed with a
// passphrase), the websocket relay pool, the provider registry and the
// bunker engine, exposing them via the Wire struct for commands to use.
package app
