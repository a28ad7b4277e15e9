// Package publisher delivers messages to an SNS-style topic with retry,
// circuit breaking and per-attempt timeouts composed by hand around a
// Transport (see ResilientPublisher for why resilience.Executor's fixed
// wrap order cannot produce the required composition).
//
// Categorize classifies transport failures into the outcome package's
// ErrorKind taxonomy so callers can decide whether a failure is worth
// retrying without inspecting AWS error strings. CredentialSource attaches
// an optional bearer token to outbound messages; it is independent of the
// inbound auth package used by the admin HTTP surface.
package publisher
