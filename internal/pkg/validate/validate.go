package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. Field names in errors use the
// json tag so messages match what the client sent.
var v = func() *validator.Validate {
	val := validator.New()
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return val
}()

// FieldError describes which fields failed which rule.
type FieldError struct {
	Fields []string
	Tags   []string
}

func (e *FieldError) Error() string {
	parts := make([]string, len(e.Fields))
	for i := range e.Fields {
		parts[i] = "field '" + e.Fields[i] + "' failed '" + e.Tags[i] + "'"
	}
	return strings.Join(parts, "; ")
}

// Struct validates the given struct using its validate tags.
// Returns a *FieldError for rule failures or nil.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	fe := &FieldError{}
	for _, e := range ve {
		fe.Fields = append(fe.Fields, e.Field())
		fe.Tags = append(fe.Tags, e.Tag())
	}
	return fe
}
