package sesiweb

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate checks request records before they are marshaled into an
// envelope, mirroring the required-field rules the API enforces server-side.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their json tag so errors name the wire field.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// FieldError describes one invalid field of a request record.
type FieldError struct {
	Field string
	Err   string
}

// FieldErrors collects every invalid field of a request record.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	msgs := make([]string, len(fe))
	for i, f := range fe {
		msgs[i] = fmt.Sprintf("%s %s", f.Field, f.Err)
	}
	return "sesiweb: invalid request: " + strings.Join(msgs, ", ")
}

// checkRecord validates a request record against its declared tags,
// translating validator failures into FieldErrors.
func checkRecord(val any) error {
	if err := validate.Struct(val); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}

		fields := make(FieldErrors, 0, len(verrs))
		for _, verr := range verrs {
			fields = append(fields, FieldError{
				Field: verr.Field(),
				Err:   msgForTag(verr.Tag()),
			})
		}
		return fields
	}
	return nil
}

func msgForTag(tag string) string {
	switch tag {
	case "required":
		return "is required"
	default:
		return fmt.Sprintf("failed %q validation", tag)
	}
}
