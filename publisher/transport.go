package publisher

import "context"

// Transport performs the physical publish call against the messaging
// backend. ResilientPublisher wraps a Transport with retry, circuit
// breaking and a timeout; implementations should stay thin and make exactly
// one network call per method invocation so the resilience layer can reason
// about attempts.
type Transport interface {
	// Publish sends msg to topicARN and returns the backend-assigned id.
	Publish(ctx context.Context, topicARN string, msg Message) (MessageId, error)

	// DescribeTopic verifies topicARN exists and is reachable. Used by
	// IsHealthy; implementations should not retry internally.
	DescribeTopic(ctx context.Context, topicARN string) error
}
