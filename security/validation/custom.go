package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dispatchcore/dispatchcore/internal/jsonschema"
	"github.com/go-playground/validator/v10"
)

// CustomValidator is the §4.E.2 pluggable validator contract: each
// returns an empty slice on success or a non-empty list of human
// readable error messages on failure.
type CustomValidator interface {
	Validate(ctx context.Context, body any) ([]string, error)
}

// SchemaValidator validates a message body's JSON representation
// against a fixed JSON Schema document using gojsonschema (via the
// shared internal/jsonschema wrapper).
type SchemaValidator struct {
	schemaLoader jsonschema.JSONLoader
}

// NewSchemaValidator compiles schemaJSON eagerly to fail fast on a
// malformed schema document.
func NewSchemaValidator(schemaJSON string) (*SchemaValidator, error) {
	loader := jsonschema.NewStringLoader(schemaJSON)
	if _, err := jsonschema.NewSchema(loader); err != nil {
		return nil, fmt.Errorf("compile validation schema: %w", err)
	}
	return &SchemaValidator{schemaLoader: loader}, nil
}

// Validate implements CustomValidator. Errors from the schema engine
// itself (a malformed document, an I/O failure reading a loader) are
// distinguished from ordinary validation failures via
// jsonschema.FormatErrors's sentinel wrapping: the former is returned as
// an error, the latter as the message slice.
func (v *SchemaValidator) Validate(ctx context.Context, body any) ([]string, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal message body for schema validation: %w", err)
	}
	result, err := jsonschema.Validate(v.schemaLoader, jsonschema.NewBytesLoader(encoded))
	if formatErr := jsonschema.FormatErrors(result, err); formatErr != nil {
		if errors.Is(formatErr, jsonschema.ErrSchemaValidationSystem) {
			return nil, formatErr
		}
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return errs, nil
	}
	return nil, nil
}

// StructValidator validates a message body against its `validate`
// struct tags using go-playground/validator/v10.
type StructValidator struct {
	validate *validator.Validate
}

// NewStructValidator returns a StructValidator backed by a fresh
// validator.Validate instance.
func NewStructValidator() *StructValidator {
	return &StructValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements CustomValidator.
func (v *StructValidator) Validate(ctx context.Context, body any) ([]string, error) {
	if err := v.validate.StructCtx(ctx, body); err != nil {
		if invalid, ok := err.(*validator.InvalidValidationError); ok {
			// body isn't a struct (or is nil) — nothing to tag-validate.
			_ = invalid
			return nil, nil
		}
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, fmt.Errorf("run struct validation: %w", err)
		}
		errs := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			errs = append(errs, fe.Error())
		}
		return errs, nil
	}
	return nil, nil
}
