// Package outcome provides the result type shared by the publish pipeline.
//
// A generic Outcome[T] carries either a value or a classified failure. It
// exists because the pipeline treats failure classification as first-class
// data rather than as an error string to be pattern-matched later: a caller
// deciding whether to retry, alert, or silently drop a message needs the
// ErrorKind, not just an error value.
//
// The shape mirrors auth.AuthResult's success/failure constructor pattern
// (success carries a payload, failure carries an error plus a reason) but is
// generic so it can carry a MessageId, a health probe result, or any future
// payload without a new wrapper type per caller.
package outcome
