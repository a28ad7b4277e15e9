package main

import (
	"encoding/json"
	"fmt"

	"github.com/jonwraymond/resilientfanout/pipeline"
	"github.com/jonwraymond/resilientfanout/publisher"
)

// jsonTransformer marshals a record's payload as the outbound message body,
// using the record ID as the SNS deduplication ID so redelivery of the same
// record does not fan out twice on a FIFO topic.
type jsonTransformer struct{}

func (jsonTransformer) Transform(r pipeline.Record) (publisher.Message, error) {
	body, err := json.Marshal(r.Payload)
	if err != nil {
		return publisher.Message{}, fmt.Errorf("marshal record %q: %w", r.ID, err)
	}
	return publisher.Message{Body: string(body), DeduplicationID: r.ID}, nil
}

var _ pipeline.Transformer = jsonTransformer{}
