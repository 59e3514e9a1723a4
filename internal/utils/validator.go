package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ValidationErrorDetail represents the structure of a single validation error.
type ValidationErrorDetail struct {
	Field    string      `json:"field"`
	Message  string      `json:"message"`
	Expected string      `json:"expected"`
	Received interface{} `json:"received"`
}

// ValidationErrorData represents the data field in the validation error response.
type ValidationErrorData struct {
	Errors []ValidationErrorDetail `json:"errors"`
}

// BindAndValidate binds the request body to the given object and validates it.
// If validation fails, it sends a formatted error response and returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}

	var details []ValidationErrorDetail
	var verrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &verrs):
		for _, e := range verrs {
			details = append(details, describeFieldError(obj, e))
		}
	case errors.As(err, &typeErr):
		details = append(details, ValidationErrorDetail{
			Field:    typeErr.Field,
			Message:  fmt.Sprintf("Field '%s' has invalid type", typeErr.Field),
			Expected: typeErr.Type.String(),
			Received: typeErr.Value,
		})
	default:
		// Malformed JSON or empty body.
		details = append(details, ValidationErrorDetail{
			Field:    "body",
			Message:  "Malformed JSON or invalid request body",
			Expected: "valid JSON",
			Received: "invalid",
		})
	}

	c.JSON(http.StatusBadRequest, Response{
		Status:  http.StatusBadRequest,
		Message: "Invalid request parameters",
		Data:    ValidationErrorData{Errors: details},
	})
	return false
}

func describeFieldError(obj interface{}, e validator.FieldError) ValidationErrorDetail {
	field := getJSONTagName(obj, e.StructField())
	detail := ValidationErrorDetail{
		Field:    field,
		Message:  fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", field, e.Tag()),
		Expected: e.Param(),
		Received: e.Value(),
	}
	if detail.Expected == "" {
		detail.Expected = e.Tag()
	}

	switch e.Tag() {
	case "required":
		detail.Message = fmt.Sprintf("Field '%s' is required", field)
		detail.Expected = "not null"
	case "email":
		detail.Message = fmt.Sprintf("Field '%s' must be a valid email address", field)
		detail.Expected = "email format"
	case "min", "max":
		if e.Kind() == reflect.String {
			detail.Message = fmt.Sprintf("Field '%s' must be at %s %s characters long", field, boundWord(e.Tag()), e.Param())
			detail.Expected = fmt.Sprintf("%s length %s", e.Tag(), e.Param())
		} else {
			detail.Message = fmt.Sprintf("Field '%s' must be at %s %s", field, boundWord(e.Tag()), e.Param())
			detail.Expected = fmt.Sprintf("%s %s", e.Tag(), e.Param())
		}
	case "gt":
		detail.Message = fmt.Sprintf("Field '%s' must be greater than %s", field, e.Param())
	case "datetime":
		detail.Message = fmt.Sprintf("Field '%s' must match the layout %s", field, e.Param())
	}
	return detail
}

func boundWord(tag string) string {
	if tag == "min" {
		return "least"
	}
	return "most"
}

// getJSONTagName maps a struct field to the name clients send.
func getJSONTagName(obj interface{}, fieldName string) string {
	t := reflect.TypeOf(obj)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if f, ok := t.FieldByName(fieldName); ok {
		if tag := f.Tag.Get("json"); tag != "" && tag != "-" {
			name, _, _ := strings.Cut(tag, ",")
			return name
		}
	}
	return fieldName
}
