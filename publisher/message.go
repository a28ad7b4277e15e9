package publisher

// Message is a single unit of work to publish to the configured topic.
type Message struct {
	// Body is the raw message payload.
	Body string

	// Attributes are transport-level message attributes (e.g. SNS message
	// attributes). ResilientPublisher may add an "Authorization" attribute
	// carrying a credential token; callers should not set that key.
	Attributes map[string]string

	// GroupID is the FIFO message group, if the topic is FIFO.
	GroupID string

	// DeduplicationID is the FIFO deduplication id, if the topic is FIFO.
	DeduplicationID string
}

// MessageId identifies a message accepted by the transport.
type MessageId string
