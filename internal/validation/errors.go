package validation

import (
	"errors"

	validatorv10 "github.com/go-playground/validator/v10"
)

// ErrorsToMap flattens validator errors into field -> message pairs for a 400 body.
// Errors that are not validation errors are reported under "error".
func ErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fe.Error()
		}
	} else if err != nil {
		out["error"] = err.Error()
	}
	return out
}
