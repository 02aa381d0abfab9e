package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	outputFormatJSON = "json"
	outputFormatYAML = "yaml"

	errorMessageUnsupportedOutput = "unsupported output format"
)

var errUnsupportedOutput = errors.New(errorMessageUnsupportedOutput)

// render writes value in the configured output format. YAML goes through the
// JSON encoding first so field names match the API.
func (application *Application) render(writer io.Writer, value any) error {
	encoded, encodeErr := json.MarshalIndent(value, "", "  ")
	if encodeErr != nil {
		return encodeErr
	}
	switch strings.ToLower(strings.TrimSpace(application.configurationLoader.GetString(environmentKeyOutput))) {
	case outputFormatJSON, "":
		_, writeErr := fmt.Fprintln(writer, string(encoded))
		return writeErr
	case outputFormatYAML:
		var generic any
		if decodeErr := json.Unmarshal(encoded, &generic); decodeErr != nil {
			return decodeErr
		}
		encoder := yaml.NewEncoder(writer)
		encoder.SetIndent(2)
		if yamlErr := encoder.Encode(generic); yamlErr != nil {
			return yamlErr
		}
		return encoder.Close()
	default:
		return fmt.Errorf("%w: %q", errUnsupportedOutput, application.configurationLoader.GetString(environmentKeyOutput))
	}
}
