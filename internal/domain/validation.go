package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterValidation("smoking_status", validateSmokingStatus)
}

func validateSmokingStatus(fl validator.FieldLevel) bool {
	switch SmokingStatus(fl.Field().String()) {
	case SmokingNever, SmokingFormer, SmokingCurrent:
		return true
	}
	return false
}

// ValidateSnapshot checks a snapshot received at an outer boundary.
// Missing sections yield ErrIncompleteSnapshot; field constraint failures yield ValidationErrors.
func ValidateSnapshot(s *QuestionnaireSnapshot) error {
	if missing := s.MissingSections(); len(missing) > 0 {
		return NewIncompleteSnapshotError(missing)
	}

	if err := validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validating snapshot: %w", err)
		}

		out := make(ValidationErrors, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			out = append(out, NewValidationError(
				strings.TrimPrefix(fe.Namespace(), "QuestionnaireSnapshot."),
				describeTag(fe),
				fe.Value(),
			))
		}
		return out
	}

	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "smoking_status":
		return "must be one of never, former, current"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
