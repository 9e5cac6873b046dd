package notifier

import "context"

// Notifier defines the interface for announcing a playtime value
type Notifier interface {
	// Notify makes a single delivery attempt for the given hours
	Notify(ctx context.Context, hours float64) error
}
