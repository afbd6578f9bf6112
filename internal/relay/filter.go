package relay

import (
	"slices"

	"keybridge/internal/domain"
)

// Matches reports whether e satisfies every populated field of f.
func Matches(f domain.Filter, e domain.Event) bool {
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, e.Kind) {
		return false
	}
	if f.Since > 0 && e.CreatedAt < f.Since {
		return false
	}
	if len(f.PTags) > 0 {
		for _, p := range f.PTags {
			if e.Addresses(p) {
				return true
			}
		}
		return false
	}
	return true
}

// ephemeral reports whether relays should forward kind without storing it.
func ephemeral(kind int) bool { return kind >= 20000 && kind < 30000 }
