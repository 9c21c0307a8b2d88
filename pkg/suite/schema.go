package suite

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaResource = "suite-v0.json"

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from the
// suite Document types.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&Document{})
	s.ID = "https://github.com/ormasoftchile/tent/schemas/suite-v0.json"
	s.Title = "Tent test suite"
	s.Description = "Schema for tent suite documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal suite schema: %w", err)
	}
	return data, nil
}

var compiledSchema = sync.OnceValues(func() (*sjsonschema.Schema, error) {
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return nil, err
	}
	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource(schemaResource, schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return sch, nil
})

// validateSemantic checks the decoded document against the generated schema.
func validateSemantic(doc *Document) []*ValidationError {
	sch, err := compiledSchema()
	if err != nil {
		return []*ValidationError{errorf("semantic", "", ErrInvalidDocument, "%v", err)}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return []*ValidationError{errorf("semantic", "", ErrInvalidDocument, "marshal for schema validation: %v", err)}
	}
	var inst any
	if err := json.Unmarshal(data, &inst); err != nil {
		return []*ValidationError{errorf("semantic", "", ErrInvalidDocument, "unmarshal document: %v", err)}
	}

	err = sch.Validate(inst)
	if err == nil {
		return nil
	}
	ve, ok := err.(*sjsonschema.ValidationError)
	if !ok {
		return []*ValidationError{errorf("semantic", "", ErrInvalidDocument, "%v", err)}
	}
	var errs []*ValidationError
	for _, cause := range flattenValidationErrors(ve) {
		errs = append(errs, errorf("semantic", instancePath(cause.InstanceLocation), ErrInvalidDocument, "%v", cause.ErrorKind))
	}
	return errs
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// instancePath renders ["cases", "0", "title"] as cases[0].title.
func instancePath(loc []string) string {
	var b strings.Builder
	for _, part := range loc {
		if part != "" && strings.Trim(part, "0123456789") == "" {
			b.WriteString("[" + part + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}
