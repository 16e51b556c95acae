package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"notevault-server/pkg/response"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

const malformedJSONMessage = "Oops! There's an issue with your JSON. Please check it and try again."

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// bcrypt works on bytes, so max (which counts runes) is not enough.
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	return v
}

// decodeJSON reads the request body into dst and answers the request itself
// when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	err := dec.Decode(dst)
	if err == nil {
		return true
	}

	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		response.ValidationFailed(w, []response.FieldError{{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("%s must be a %s", label(typeErr.Field), jsonKind(typeErr.Type)),
		}})
	case errors.As(err, &maxErr):
		response.Error(w, http.StatusRequestEntityTooLarge, "Request body too large")
	default:
		response.BadRequest(w, malformedJSONMessage)
	}
	return false
}

// validate answers the request with per-field messages when v fails validation.
func validate(w http.ResponseWriter, v *validator.Validate, payload interface{}) bool {
	err := v.Struct(payload)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		response.BadRequest(w, "Validation errors")
		return false
	}

	fields := make([]response.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, response.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	response.ValidationFailed(w, fields)
	return false
}

func fieldMessage(fe validator.FieldError) string {
	name := label(fe.Field())

	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return name + " must be valid"
	case "min":
		if fe.Param() == "1" {
			return name + " cannot be empty"
		}
		return fmt.Sprintf("%s must be at least %s characters long", name, fe.Param())
	case "maxbytes":
		return fmt.Sprintf("%s must be at most %s bytes long", name, fe.Param())
	default:
		return name + " is invalid"
	}
}

func label(field string) string {
	if field == "" {
		return field
	}
	return strings.ToUpper(field[:1]) + field[1:]
}

func jsonKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "list"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "number"
	}
}
