package application

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-desirability/internal/domain"
)

// newConfigValidator returns the shared validator with custom rules
// registered. Registration happens once.
var newConfigValidator = sync.OnceValues(func() (*validator.Validate, error) {
	v := validator.New()
	if err := RegisterConfigValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return v, nil
})

// RegisterConfigValidators registers custom validation functions with v
// for use in configuration and document struct tags.
// RegisterConfigValidators adds scalefactor, sourcename and label rules.
// RegisterConfigValidators returns an error if any validator registration
// fails.
func RegisterConfigValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("scalefactor", validateScaleFactor); err != nil {
		return fmt.Errorf("failed to register scalefactor validator: %w", err)
	}

	if err := v.RegisterValidation("sourcename", validateSourceName); err != nil {
		return fmt.Errorf("failed to register sourcename validator: %w", err)
	}

	if err := v.RegisterValidation("label", validateLabel); err != nil {
		return fmt.Errorf("failed to register label validator: %w", err)
	}

	return nil
}

// validateScaleFactor accepts floats within the label scale factor bounds
// of a desirability lookup.
func validateScaleFactor(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return f >= domain.MinLabelScaleFactor && f <= domain.MaxLabelScaleFactor
}

// validateSourceName accepts any registered source name, case-insensitively.
func validateSourceName(fl validator.FieldLevel) bool {
	_, err := domain.ParseSource(fl.Field().String())
	return err == nil
}

// validateLabel accepts strings that normalize to a valid label.
func validateLabel(fl validator.FieldLevel) bool {
	_, err := domain.NewLabel(fl.Field().String())
	return err == nil
}
