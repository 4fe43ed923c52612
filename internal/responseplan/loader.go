package responseplan

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"esctl/internal/errors"
	"esctl/internal/reconcile"
)

// LoadFile reads a desired-state response plan from a YAML file. Unknown
// fields are rejected so typos in plan files surface as errors instead of
// silently dropped configuration.
func LoadFile(path string) (*reconcile.ResponsePlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound,
				fmt.Sprintf("response plan file not found: %s", path), err)
		}
		return nil, errors.Wrap(errors.ErrCodeFileNotFound,
			fmt.Sprintf("reading response plan file %s", path), err)
	}
	return Parse(data, path)
}

// Parse decodes YAML desired state. source names the origin for error
// messages.
func Parse(data []byte, source string) (*reconcile.ResponsePlan, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var plan reconcile.ResponsePlan
	if err := decoder.Decode(&plan); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileUnmarshal,
			fmt.Sprintf("parsing response plan from %s", source), err).
			WithSuggestion("Check the YAML syntax and field names against a known-good plan file")
	}

	if plan.Name == "" {
		return nil, errors.NewMissingFieldError("response plan file "+source, "name")
	}
	return &plan, nil
}
