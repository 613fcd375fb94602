package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	apperrors "pixelqc/internal/errors"
	"pixelqc/pkg/contracts/domain"
)

// DefaultBandConfigFile is the legacy band configuration file name
const DefaultBandConfigFile = "configuration.json"

// LoadBandConfig reads the selection percentage and band definitions from a
// JSON or YAML file (chosen by extension) and validates them.
func LoadBandConfig(path string) (*domain.BandConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("failed to read band config %s", path), err)
	}

	var cfg domain.BandConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("failed to parse band config %s", path), err)
	}

	if err := ValidateBandConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateBandConfig checks the percentage range, that at least one band is
// defined, that band names are unique and non-empty, and that bounded bands
// are not inverted. Gaps and overlaps between bands are allowed.
func ValidateBandConfig(cfg *domain.BandConfig) error {
	err := bandValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewConfigError("band config validation failed", err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, formatValidationError(fe))
	}

	appErr := apperrors.NewConfigError("invalid band config: "+strings.Join(messages, "; "), nil)
	for _, fe := range fieldErrs {
		if fe.StructField() == "Percentage" {
			appErr.Type = apperrors.ErrTypeInvalidPercentage
			appErr.WithContext("percentage", cfg.Percentage)
		}
	}
	return appErr
}

func bandValidator() *validator.Validate {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(bandStructLevel, domain.Band{})

	return v
}

// bandStructLevel rejects bounded bands whose upper bound is not above the lower
func bandStructLevel(sl validator.StructLevel) {
	band := sl.Current().Interface().(domain.Band)
	if band.Bounded() && band.To <= band.From {
		sl.ReportError(band.To, "to", "To", "gtfield", "from")
	}
}

// formatValidationError formats validation error messages
func formatValidationError(err validator.FieldError) string {
	field := err.Namespace()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, param)
	case "unique":
		return fmt.Sprintf("%s must have unique %s values", field, strings.ToLower(param))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "gtfield":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}
