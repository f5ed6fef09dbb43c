package config

import (
	stderrors "errors"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/schema"
)

// validateDocument checks a decoded configuration document against the
// embedded schema and reports failures as ErrCodeConfigValidation.
func validateDocument(raw map[string]interface{}) error {
	validator, err := schema.NewValidator()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to load configuration schema")
	}
	err = validator.Validate(raw)
	if err == nil {
		return nil
	}

	var verr *schema.ValidationError
	if !stderrors.As(err, &verr) {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "schema validation failed")
	}
	locations := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		locations = append(locations, v.String())
	}
	return errors.Wrap(err, errors.ErrCodeConfigValidation, "schema validation failed").
		WithDetail("violations", locations)
}
