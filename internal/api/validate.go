package api

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{validate: v}
}

func (rv *requestValidator) Struct(s any) map[string]string {
	err := rv.validate.Struct(s)
	if err == nil {
		return nil
	}

	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["body"] = err.Error()
		return fields
	}

	for _, e := range verrs {
		field := fieldPath(e.Namespace())
		switch e.Tag() {
		case "required":
			fields[field] = field + " is required"
		case "uuid":
			fields[field] = field + " must be a valid UUID"
		case "numeric":
			fields[field] = field + " must be a number"
		case "gte":
			fields[field] = field + " must be greater than or equal to " + e.Param()
		case "lte":
			fields[field] = field + " must be less than or equal to " + e.Param()
		case "oneof":
			fields[field] = field + " must be one of " + e.Param()
		default:
			fields[field] = field + " is invalid"
		}
	}
	return fields
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
