// Package provider holds the active signing provider and an in-process
// implementation of it.
//
// Applications look up Registry.Active rather than a global: the bunker
// engine installs its facade there while a session is ready and removes it
// again on disconnect.
package provider
