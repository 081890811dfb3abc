// Package document encodes the tool version document and persists it
// atomically for the documentation site.
package document

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/vellankikoti/tool-versions/internal/sources"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://devopsengineers.dev/schemas/tool-versions.json"

// ErrInvalidDocument is returned when stored content does not match the document schema
var ErrInvalidDocument = errors.New("invalid version document")

// VersionDocument maps tool IDs to their latest release
type VersionDocument map[string]sources.VersionInfo

// IDs returns the tool IDs in the document, sorted
func (d VersionDocument) IDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Clone returns a shallow copy of the document
func (d VersionDocument) Clone() VersionDocument {
	out := make(VersionDocument, len(d))
	for id, info := range d {
		out[id] = info
	}
	return out
}

// Encode renders doc with sorted keys, two-space indentation and a trailing
// newline. Equal documents always encode to identical bytes.
func Encode(doc VersionDocument) ([]byte, error) {
	if doc == nil {
		doc = VersionDocument{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode version document: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode validates data against the document schema and parses it
func Decode(data []byte) (VersionDocument, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	doc := VersionDocument{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return doc, nil
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to load document schema: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile document schema: %w", err)
	}
	return schema, nil
})
