package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonwraymond/resilientfanout/pipeline"
)

// fileDataSource reads a single page of records from a local JSON file (a
// JSON array of objects). It is a minimal stand-in for the real upstream
// data source this pipeline would page through in production, and
// implements only the Fetch/Ready capability of pipeline.DataSource.
type fileDataSource struct {
	path string
}

func newFileDataSource(path string) *fileDataSource {
	return &fileDataSource{path: path}
}

// Fetch returns every record in the configured file as a single page; an
// empty path yields an empty page. pageToken is ignored beyond its
// zero-value check since this data source never paginates.
func (f *fileDataSource) Fetch(_ context.Context, pageToken string) (pipeline.Page, error) {
	if pageToken != "" || f.path == "" {
		return pipeline.Page{}, nil
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		return pipeline.Page{}, fmt.Errorf("read data source file: %w", err)
	}

	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return pipeline.Page{}, fmt.Errorf("decode data source file: %w", err)
	}

	records := make([]pipeline.Record, 0, len(rows))
	for i, row := range rows {
		records = append(records, pipeline.Record{ID: fmt.Sprintf("%d", i), Payload: row})
	}
	return pipeline.Page{Records: records}, nil
}

// Ready reports whether the configured file is reachable. An unconfigured
// path is considered ready (an empty pipeline run, not a fault).
func (f *fileDataSource) Ready(context.Context) error {
	if f.path == "" {
		return nil
	}
	_, err := os.Stat(f.path)
	return err
}

var _ pipeline.DataSource = (*fileDataSource)(nil)
