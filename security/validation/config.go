// Package validation implements the input validation middleware from
// spec.md §4.E.2: built-in injection/control-character/size checks plus
// a pluggable chain of custom validators.
//
// Grounded on the teacher's pkg/jsonschema wrapper (carried here as
// internal/jsonschema) for schema-based custom validation, and on
// jordigilh-kubernaut's and Xushengqwer-post_search_service's go.mod for
// github.com/go-playground/validator/v10 as the struct-tag validator.
package validation

// Config controls one Middleware instance.
type Config struct {
	Enabled bool

	DetectInjectionPatterns bool
	RejectControlCharacters bool

	// MaxStringLength bounds individual string field lengths; 0 disables
	// the check.
	MaxStringLength int
	// MaxMessageSizeBytes bounds the serialized message body size; 0
	// disables the check.
	MaxMessageSizeBytes int

	// RequireCorrelationID, when true, fails validation for a message
	// carrying an empty CorrelationID.
	RequireCorrelationID bool
}

// DefaultConfig returns a Config with injection and control-character
// checks enabled, no size limits configured, and no correlation id
// required.
func DefaultConfig() Config {
	return Config{
		Enabled:                 true,
		DetectInjectionPatterns: true,
		RejectControlCharacters: true,
	}
}
