package appledb

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/apex/log"
	"github.com/blacktop/fcs-keys/internal/download"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema/index.schema.json
var indexSchemaJSON []byte

const indexSchemaURL = "appledb-index.schema.json"

var indexSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(indexSchemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(indexSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(indexSchemaURL)
})

// IndexSource reads the AppleDB JSON index of "OS;build" strings.
type IndexSource struct {
	URL    string
	Client *http.Client
}

func (s IndexSource) String() string {
	return "index " + s.URL
}

// Builds fetches and parses the index.
func (s IndexSource) Builds(ctx context.Context) ([]Build, error) {
	body, err := download.Get(ctx, s.Client, s.URL, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		return nil, err
	}
	return ParseIndex(body)
}

// ParseIndex validates and parses an index body.
func ParseIndex(body []byte) ([]Build, error) {
	sch, err := indexSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile index schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("unexpected index format: %w", err)
	}

	var entries []string
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}

	builds := make([]Build, 0, len(entries))
	for _, e := range entries {
		b, ok := ParseEntry(e)
		if !ok {
			log.WithField("entry", e).Debug("skipping index entry without ';'")
			continue
		}
		builds = append(builds, b)
	}
	return builds, nil
}
