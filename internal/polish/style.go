package polish

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

// StyleConfig shapes how the refiner rewrites text. It is stored serialized
// on the project and carried into every refinement call.
type StyleConfig struct {
	Mode               string   `json:"mode" validate:"omitempty,oneof=polish rewrite proofread"`
	Tone               string   `json:"tone" validate:"omitempty,max=64"`
	CleaningRules      []string `json:"cleaning_rules" validate:"dive,max=128"`
	CustomInstructions string   `json:"custom_instructions" validate:"omitempty,max=4096"`
}

// styleSchema validates the raw JSON shape before unmarshalling, so a project
// created with a malformed style payload is rejected at ingestion rather than
// at the first refinement call.
const styleSchema = `{
  "type": "object",
  "properties": {
    "mode": {"type": "string", "enum": ["polish", "rewrite", "proofread"]},
    "tone": {"type": "string", "maxLength": 64},
    "cleaning_rules": {"type": "array", "items": {"type": "string", "maxLength": 128}},
    "custom_instructions": {"type": "string", "maxLength": 4096}
  },
  "additionalProperties": false
}`

var validate = validator.New()

// ParseStyleConfig validates raw JSON against the style schema and decodes it.
// A nil or empty payload returns nil, meaning provider defaults.
func ParseStyleConfig(raw []byte) (*StyleConfig, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(styleSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate style config: %w", err)
	}
	if !result.Valid() {
		return nil, &StyleError{Issues: schemaIssues(result)}
	}

	var cfg StyleConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse style config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid style config: %w", err)
	}
	return &cfg, nil
}

func schemaIssues(result *gojsonschema.Result) []string {
	issues := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		issues = append(issues, e.String())
	}
	return issues
}

// StyleError reports a style config rejected by the schema.
type StyleError struct {
	Issues []string
}

func (e *StyleError) Error() string {
	return fmt.Sprintf("style config rejected: %v", e.Issues)
}
