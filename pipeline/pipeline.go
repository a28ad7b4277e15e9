// Package pipeline drives the fetch -> transform -> publish loop: it pages
// through a DataSource under a rate limiter, transforms each record into a
// message, and hands the batch to a fanout.FanOutEngine for concurrent
// publishing. It also exposes a bulkhead-bounded health check combining the
// publisher's own health with the data source's readiness.
package pipeline

import (
	"context"

	"github.com/jonwraymond/resilientfanout/publisher"
)

// Record is a single item read from a DataSource, opaque to the pipeline
// itself — only the configured Transformer interprets its shape.
type Record struct {
	ID      string
	Payload map[string]any
}

// Page is one page of records plus the token to fetch the next page. An
// empty NextPageToken signals the end of the stream.
type Page struct {
	Records       []Record
	NextPageToken string
}

// DataSource is the upstream system the pipeline reads from.
type DataSource interface {
	// Fetch retrieves the next page starting at pageToken ("" for the
	// first page).
	Fetch(ctx context.Context, pageToken string) (Page, error)

	// Ready reports whether the data source can currently serve Fetch
	// calls; used to feed the pipeline's health check.
	Ready(ctx context.Context) error
}

// Transformer converts a single Record into an outbound message. It must be
// pure: no I/O, no shared mutable state.
type Transformer interface {
	Transform(record Record) (publisher.Message, error)
}

// TransformerFunc adapts a function to a Transformer.
type TransformerFunc func(Record) (publisher.Message, error)

// Transform calls f.
func (f TransformerFunc) Transform(record Record) (publisher.Message, error) {
	return f(record)
}
