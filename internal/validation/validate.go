package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"pendakian-services/internal/apperror"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their JSON names so clients can map errors back to inputs.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates v and maps failures to field -> tag details.
func Struct(v any, message string) *apperror.Error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperror.Validation(message, nil)
	}

	details := make(map[string]any, len(ve))
	for _, fieldErr := range ve {
		details[fieldPath(fieldErr.Namespace())] = tagWithParam(fieldErr)
	}
	return apperror.Validation(message, details)
}

func fieldPath(namespace string) string {
	// Drop the root struct name: "CreateRequest.ketua_rombongan.email" -> "ketua_rombongan.email".
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func tagWithParam(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
