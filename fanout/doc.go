// Package fanout publishes a batch of messages concurrently across a
// bounded worker pool. It sits between pipeline's transform stage and a
// publisher.MessagePublisher: the pool size tracks batch size, the shared
// channel is bounded so backpressure is felt by the producer rather than
// hidden behind unbounded buffering, and a panicking publish is recovered
// and counted as a failure rather than taking down the batch.
package fanout
