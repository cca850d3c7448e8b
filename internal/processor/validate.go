package processor

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/local/examparser/internal/errs"
	"github.com/local/examparser/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(questionLevel, models.Question{})
	return v
}

// questionLevel checks rules that span fields: labels are unique and the
// correct option is one of them.
func questionLevel(sl validator.StructLevel) {
	q := sl.Current().Interface().(models.Question)
	seen := make(map[string]bool, len(q.Options))
	for _, opt := range q.Options {
		if seen[opt.Label] {
			sl.ReportError(q.Options, "options", "Options", "unique_labels", opt.Label)
			return
		}
		seen[opt.Label] = true
	}
	if q.CorrectOption != "" && !q.Options.Has(q.CorrectOption) {
		sl.ReportError(q.CorrectOption, "correct_option", "CorrectOption", "declared_option", strings.Join(q.Options.Labels(), " "))
	}
}

// ValidateQuestion checks q against the question schema.
func ValidateQuestion(q models.Question) error {
	if err := validate.Struct(q); err != nil {
		return errs.E(errs.Validation, "validate_question", describe(err))
	}
	return nil
}

func describe(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := e.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "oneof", "declared_option":
			msgs = append(msgs, fmt.Sprintf("%s=%v must be one of [%s]", field, e.Value(), e.Param()))
		case "max", "min":
			msgs = append(msgs, fmt.Sprintf("%s violates %s=%s", field, e.Tag(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, e.Tag()))
		}
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
