package interfaces

import (
	"context"

	domaintypes "keybridge/internal/domain/types"
)

// Subscription is a live relay subscription.
type Subscription interface {
	Close()
}

// RelayPool is the pub/sub transport shared by the whole application.
//
// EnsureRelay must be idempotent: adding a relay twice is a no-op.
// Subscribe invokes onEvent once per matching event; implementations must not
// block the caller of Publish on delivery.
type RelayPool interface {
	EnsureRelay(ctx context.Context, url string) error
	Publish(ctx context.Context, relays []string, event domaintypes.Event) error
	Subscribe(
		ctx context.Context,
		relays []string,
		filter domaintypes.Filter,
		onEvent func(domaintypes.Event),
	) (Subscription, error)
}
