package library

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// newValidator reports violations under the json field names and treats a
// zero Date as missing.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		d, ok := field.Interface().(Date)
		if !ok || d.IsZero() {
			return nil
		}
		return d.String()
	}, Date{})
	return v
}

func validateRequest(v *validator.Validate, req any) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate request")
	}
	fe := &FieldError{Violations: make([]Violation, 0, len(verrs))}
	for _, ve := range verrs {
		fe.Violations = append(fe.Violations, Violation{Field: ve.Field(), Rule: ve.Tag()})
	}
	return fe
}

func trimBookRequest(req BookRequest) BookRequest {
	req.ISBN = strings.TrimSpace(req.ISBN)
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	req.Publisher = strings.TrimSpace(req.Publisher)
	req.Genre = strings.TrimSpace(req.Genre)
	return req
}

func trimMemberRequest(req MemberRequest) MemberRequest {
	req.FullName = strings.TrimSpace(req.FullName)
	req.ContactInfo = strings.TrimSpace(req.ContactInfo)
	req.MembershipType = MembershipType(strings.ToLower(strings.TrimSpace(string(req.MembershipType))))
	return req
}
