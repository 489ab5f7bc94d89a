// Package validation checks transaction definitions before an external
// transaction manager applies them to a connection.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/txsync/pkg/txsync"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Validation constants
	MaxNameLength = 250
	MaxTimeout    = 24 * time.Hour
)

func init() {
	validate = validator.New()
}

// ValidateDefinition validates a transaction definition
func ValidateDefinition(def *txsync.Definition) error {
	if def == nil {
		return errors.New("transaction definition cannot be nil")
	}

	// Validate using struct tags
	if err := validate.Struct(def); err != nil {
		return formatValidationError(err)
	}

	// Additional timeout validation
	if def.Timeout > MaxTimeout {
		return fmt.Errorf("Timeout: exceeds maximum of %v", MaxTimeout)
	}

	// A read-only serializable transaction is fine; a negative isolation
	// value can only come from a bogus cast
	if def.Isolation < txsync.IsolationDefault || def.Isolation > txsync.IsolationSerializable {
		return fmt.Errorf("Isolation: unknown level %d", def.Isolation)
	}

	return nil
}

// formatValidationError converts validator errors into readable messages
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, ferr := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed '%s' validation", ferr.Field(), ferr.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
