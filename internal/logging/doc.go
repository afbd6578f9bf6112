// Package logging builds the zerolog loggers used by the binaries.
package logging
