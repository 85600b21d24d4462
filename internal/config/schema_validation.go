package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	vigilschema "github.com/vigil-dev/vigil/schema"
)

var (
	manifestSchemaOnce sync.Once
	manifestSchema     *jsonschema.Schema
	manifestSchemaErr  error
)

func loadManifestSchema() (*jsonschema.Schema, error) {
	manifestSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("manifest.v1.json", bytes.NewReader(vigilschema.ManifestV1Schema)); err != nil {
			manifestSchemaErr = fmt.Errorf("add manifest schema resource: %w", err)
			return
		}
		manifestSchema, manifestSchemaErr = compiler.Compile("manifest.v1.json")
		if manifestSchemaErr != nil {
			manifestSchemaErr = fmt.Errorf("compile manifest schema: %w", manifestSchemaErr)
		}
	})
	return manifestSchema, manifestSchemaErr
}

// validateAgainstSchema checks the decoded document shape before the strict
// struct decode so type and unknown-field errors carry manifest paths.
func validateAgainstSchema(doc map[string]any) error {
	schema, err := loadManifestSchema()
	if err != nil {
		return fmt.Errorf("load manifest schema: %w", err)
	}

	value, err := toJSONValue(doc)
	if err != nil {
		return fmt.Errorf("prepare manifest for schema validation: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		var vErr *jsonschema.ValidationError
		if errors.As(err, &vErr) {
			return fmt.Errorf("schema validation failed:\n%s", formatValidationError(vErr))
		}
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// toJSONValue round-trips the YAML document through JSON so numbers keep
// their integer identity for the schema checks.
func toJSONValue(doc map[string]any) (any, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(&buf)
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func formatValidationError(err *jsonschema.ValidationError) string {
	var b strings.Builder
	writeValidationError(&b, err, 0)
	return strings.TrimRight(b.String(), "\n")
}

func writeValidationError(b *strings.Builder, err *jsonschema.ValidationError, depth int) {
	// Container nodes only repeat which subschema failed; report the leaf
	// causes instead.
	skip := len(err.Causes) > 0 && strings.HasPrefix(err.Message, "doesn't validate with")
	if !skip {
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(b, "%s- %s: %s\n", indent, formatInstanceLocation(err.InstanceLocation), err.Message)
		depth++
	}
	for _, cause := range err.Causes {
		writeValidationError(b, cause, depth)
	}
}

// formatInstanceLocation converts a JSON pointer into the dotted field paths
// the rest of the validation layer reports, e.g. /services/0/command becomes
// services[0].command.
func formatInstanceLocation(ptr string) string {
	var b strings.Builder
	for _, segment := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		if segment == "" {
			continue
		}
		decoded := strings.ReplaceAll(strings.ReplaceAll(segment, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(decoded); err == nil {
			fmt.Fprintf(&b, "[%s]", decoded)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(decoded)
	}
	if b.Len() == 0 {
		return "manifest"
	}
	return b.String()
}
