package identity

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
)

const (
	errorMessageReadConstraint  = "identity: read constraint file"
	errorMessageParseConstraint = "identity: parse constraint file"
	errorMessageMissingPrefix   = "identity: missing service phone prefix"
	errorMessageInvalidPrefix   = "identity: service phone prefix must be digits"
)

var (
	// ErrMissingServicePhonePrefix indicates a constraint without a phone prefix.
	ErrMissingServicePhonePrefix = errors.New(errorMessageMissingPrefix)
	// ErrInvalidServicePhonePrefix indicates a prefix with non-digit characters.
	ErrInvalidServicePhonePrefix = errors.New(errorMessageInvalidPrefix)
)

// LoadConstraint reads a YAML constraint file. An empty path yields the compiled-in default.
// Fields omitted from the file keep their default values.
func LoadConstraint(path string) (model.IdentityConstraint, error) {
	constraint := model.DefaultIdentityConstraint()
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return constraint, nil
	}
	contents, readErr := os.ReadFile(trimmedPath)
	if readErr != nil {
		return model.IdentityConstraint{}, fmt.Errorf("%s: %w", errorMessageReadConstraint, readErr)
	}
	if parseErr := yaml.Unmarshal(contents, &constraint); parseErr != nil {
		return model.IdentityConstraint{}, fmt.Errorf("%s: %w", errorMessageParseConstraint, parseErr)
	}
	if err := validateConstraint(constraint); err != nil {
		return model.IdentityConstraint{}, err
	}
	return constraint, nil
}

func validateConstraint(constraint model.IdentityConstraint) error {
	prefix := strings.TrimSpace(constraint.ServicePhonePrefix)
	if prefix == "" {
		return ErrMissingServicePhonePrefix
	}
	for _, character := range prefix {
		if character < '0' || character > '9' {
			return fmt.Errorf("%w: %s", ErrInvalidServicePhonePrefix, prefix)
		}
	}
	return nil
}
