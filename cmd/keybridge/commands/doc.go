// Package commands implements the keybridge CLI.
//
// Every command loads config.toml from --home, builds the app wiring (which
// resumes a stored session) and closes it again on exit. Commands that sign
// or encrypt go through the active provider in the registry, which is the
// bunker facade while a session is ready.
//
// Commands:
//
//	connect <token>                pair and print the user pubkey
//	status                         state, session details and a bunker:// token
//	pubkey                         user pubkey
//	ping                           liveness probe
//	sign [file|-]                  sign an unsigned event (JSON)
//	encrypt <pubkey> <plaintext>   --scheme nip44|nip04
//	decrypt <pubkey> <ciphertext>  --scheme nip44|nip04
//	disconnect                     forget the session
package commands
