package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/shehryarbajwa/casefiler/pkg/models"
)

const submissionSchemaID = "schema://submission-request"

// Validator checks request bodies against the JSON Schema reflected from
// models.SubmissionRequest
type Validator struct {
	schema *jsonschemav5.Schema
}

// NewValidator reflects and compiles the submission schema
func NewValidator() (*Validator, error) {
	schemaBytes, err := SubmissionSchema()
	if err != nil {
		return nil, err
	}

	compiler := jsonschemav5.NewCompiler()
	if err := compiler.AddResource(submissionSchemaID, bytes.NewReader(schemaBytes)); err != nil {
		return nil, fmt.Errorf("failed to add submission schema: %w", err)
	}
	schema, err := compiler.Compile(submissionSchemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to compile submission schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// SubmissionSchema returns the JSON Schema for a submission body
func SubmissionSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{}
	reflector.RequiredFromJSONSchemaTags = true
	schema := reflector.Reflect(&models.SubmissionRequest{})

	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON schema: %w", err)
	}
	return schemaBytes, nil
}

// Validate checks body and decodes it into a request
func (v *Validator) Validate(body []byte) (models.SubmissionRequest, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return models.SubmissionRequest{}, fmt.Errorf("invalid JSON: %w", err)
	}

	if err := v.schema.Validate(doc); err != nil {
		return models.SubmissionRequest{}, fmt.Errorf("schema validation failed: %w", err)
	}

	var req models.SubmissionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return models.SubmissionRequest{}, fmt.Errorf("invalid request body: %w", err)
	}
	return req, nil
}
