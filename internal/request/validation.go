// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package request

import (
	"bytes"
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"github.com/samber/oops"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError reports why a submission was rejected, keyed by field.
// Nothing is persisted when it is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("validation failed: ")
	for i, name := range names {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %s", name, e.Fields[name])
	}
	return b.String()
}

// validEmail reports whether s parses as a bare address.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// FieldsSchema validates the free-form fields map of a submission against a
// deployment-configured JSON schema.
type FieldsSchema struct {
	schema *jsonschema.Schema
}

// CompileFieldsSchema compiles schema JSON into a validator.
func CompileFieldsSchema(data []byte) (*FieldsSchema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("config", "requests.fields_schema").Wrap(err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("fields.schema.json", doc); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("config", "requests.fields_schema").Wrap(err)
	}
	schema, err := compiler.Compile("fields.schema.json")
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("config", "requests.fields_schema").Wrap(err)
	}
	return &FieldsSchema{schema: schema}, nil
}

// Validate checks a fields map. A nil receiver accepts everything.
func (s *FieldsSchema) Validate(fields map[string]any) error {
	if s == nil || s.schema == nil {
		return nil
	}
	// The schema operates on generic JSON values; an absent map is an empty
	// object for validation purposes.
	value := map[string]any{}
	for k, v := range fields {
		value[k] = v
	}
	return s.schema.Validate(any(value))
}
