package events

import "context"

// Publisher emits domain events. The Kafka producer satisfies this; services
// treat publish failures as non-fatal (settlement must never roll back because
// a broker was unreachable).
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}
