// Package schemas provides JSON Schema validation for agent responses.
// Schemas are stored as JSON files and embedded at compile time; the model
// gateway validates every structured response against the caller's schema
// before decoding, so malformed output is caught as a retryable parse failure.
package schemas

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed *.json
var schemaFiles embed.FS

var (
	cache   = make(map[string]*Schema)
	cacheMu sync.Mutex
)

// Schema is a compiled JSON Schema for one agent response shape.
type Schema struct {
	name     string
	compiled *gojsonschema.Schema
}

// Name returns the schema's file name without extension.
func (s *Schema) Name() string {
	return s.name
}

// FieldError is a single validation error at a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError reports schema violations in a model response.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "response violates schema %s:", ve.Schema)
	for _, err := range ve.Errors {
		fmt.Fprintf(&sb, " %s: %s;", err.Field, err.Message)
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// Load compiles the named embedded schema (e.g. "research"), caching the
// result. Returns an error if the file is missing or not a valid schema.
func Load(name string) (*Schema, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if s, ok := cache[name]; ok {
		return s, nil
	}

	data, err := schemaFiles.ReadFile(name + ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	s := &Schema{name: name, compiled: compiled}
	cache[name] = s
	return s, nil
}

// MustLoad is Load for schemas required at initialization time.
func MustLoad(name string) *Schema {
	s, err := Load(name)
	if err != nil {
		panic(fmt.Sprintf("failed to load schema: %v", err))
	}
	return s
}

// Validate checks a raw JSON document against the schema.
func (s *Schema) Validate(document []byte) error {
	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("schema validation of %s failed: %w", s.name, err)
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{Schema: s.name}
	for _, desc := range result.Errors() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	return ve
}
