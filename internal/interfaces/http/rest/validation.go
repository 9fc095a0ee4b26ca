package rest

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"usbspeed/internal/errors"
)

// FieldError describes one rejected query parameter.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// InvalidQueryError lists every rejected query parameter.
type InvalidQueryError struct {
	Fields []FieldError
}

func (e *InvalidQueryError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return "invalid query parameters: " + strings.Join(names, ", ")
}

// ChangesQuery holds the parameters of GET /api/v1/changes.
type ChangesQuery struct {
	Limit int    `query:"limit" validate:"gte=0,lte=1000"`
	Kind  string `query:"kind" validate:"omitempty,oneof=added removed"`
}

// DevicesQuery holds the parameters of GET /api/v1/devices.
type DevicesQuery struct {
	Family string `query:"family" validate:"omitempty,oneof=usb thunderbolt"`
}

var queryValidator = newQueryValidator()

func newQueryValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("query")
	})
	return v
}

func parseChangesQuery(values url.Values) (ChangesQuery, error) {
	var q ChangesQuery
	var fields []FieldError

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fields = append(fields, FieldError{Field: "limit", Message: "Must be an integer"})
		} else {
			q.Limit = n
		}
	}
	q.Kind = values.Get("kind")

	fields = append(fields, validateQuery(q)...)
	if len(fields) > 0 {
		return q, invalid(fields)
	}
	return q, nil
}

func parseDevicesQuery(values url.Values) (DevicesQuery, error) {
	q := DevicesQuery{Family: values.Get("family")}
	if fields := validateQuery(q); len(fields) > 0 {
		return q, invalid(fields)
	}
	return q, nil
}

func validateQuery(q interface{}) []FieldError {
	err := queryValidator.Struct(q)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "query", Message: err.Error()}}
	}

	fields := make([]FieldError, 0, len(validationErrors))
	for _, e := range validationErrors {
		fields = append(fields, FieldError{Field: e.Field(), Message: errorMessage(e.Tag(), e.Param())})
	}
	return fields
}

func errorMessage(tag, param string) string {
	switch tag {
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", strings.ReplaceAll(param, " ", ", "))
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", param)
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", param)
	default:
		return fmt.Sprintf("Failed %s validation", tag)
	}
}

func invalid(fields []FieldError) error {
	return errors.NewValidation("invalid query", &InvalidQueryError{Fields: fields})
}
