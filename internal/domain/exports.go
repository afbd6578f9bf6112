package domain

import (
	interfaces "keybridge/internal/domain/interfaces"
	types "keybridge/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Event                = types.Event
	Filter               = types.Filter
	Scheme               = types.Scheme
	ConnectionDescriptor = types.ConnectionDescriptor
	Session              = types.Session
	State                = types.State
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	Subscription  = interfaces.Subscription
	RelayPool     = interfaces.RelayPool
	KeyValueStore = interfaces.KeyValueStore
	User          = interfaces.User
	Signer        = interfaces.Signer
	Cipher        = interfaces.Cipher
	Provider      = interfaces.Provider
)

const (
	KindNostrConnect     = types.KindNostrConnect
	SessionRecordVersion = types.SessionRecordVersion

	SchemeBunker       = types.SchemeBunker
	SchemeNostrConnect = types.SchemeNostrConnect

	StateIdle       = types.StateIdle
	StateConnecting = types.StateConnecting
	StateReady      = types.StateReady
	StateError      = types.StateError
)
