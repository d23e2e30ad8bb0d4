// Package validation is the configuration boundary: every monitor, channel and
// create request passes through it before anything is persisted or dialed.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"sentinel/pkg/apperror"

	"github.com/go-playground/validator/v10"
)

// Allowed check cadences.
var Intervals = []time.Duration{60 * time.Second, 300 * time.Second}

// Locations is the fixed set of probe vantage points.
var Locations = []string{"us-east", "us-west", "eu-west", "eu-central", "ap-southeast"}

type Result struct {
	IsValid bool                  `json:"is_valid"`
	Errors  []apperror.FieldError `json:"errors"`
}

// Err converts an invalid result into an invalid_input apperror.
func (r Result) Err(op string) error {
	if r.IsValid {
		return nil
	}
	return &apperror.Error{
		Kind:    apperror.InvalidInput,
		Op:      op,
		Message: "validation failed",
		Fields:  r.Errors,
	}
}

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names so callers can map errors to request fields
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("monitor_interval", validateInterval)
	_ = v.RegisterValidation("probe_location", validateLocation)
	_ = v.RegisterValidation("http_status", validateHTTPStatus)

	return &Validator{validate: v}
}

// Engine exposes the underlying validator for packages that register their own rules.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

func (v *Validator) Validate(s any) Result {
	err := v.validate.Struct(s)
	if err == nil {
		return Result{IsValid: true, Errors: []apperror.FieldError{}}
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return Result{
			IsValid: false,
			Errors:  []apperror.FieldError{{Field: "", Message: err.Error(), Code: "invalid"}},
		}
	}

	out := make([]apperror.FieldError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, apperror.FieldError{
			Field:   fieldPath(fe),
			Message: message(fe),
			Code:    fe.Tag(),
		})
	}
	return Result{IsValid: false, Errors: out}
}

// Merge folds extra field errors into r.
func (r Result) Merge(extra ...apperror.FieldError) Result {
	if len(extra) == 0 {
		return r
	}
	r.Errors = append(r.Errors, extra...)
	r.IsValid = false
	return r
}

func fieldPath(fe validator.FieldError) string {
	// drop the root struct name: "CreateMonitorRequest.locations[0]" -> "locations[0]"
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url", "http_url":
		return "must be a valid URL"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must have at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must have at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be > %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "unique":
		return "must not contain duplicates"
	case "monitor_interval":
		return "must be 60 or 300 seconds"
	case "probe_location":
		return fmt.Sprintf("must be one of [%s]", strings.Join(Locations, " "))
	case "http_status":
		return "must be an HTTP status code between 100 and 599"
	default:
		return fmt.Sprintf("failed on '%s'", fe.Tag())
	}
}

func validateInterval(fl validator.FieldLevel) bool {
	f := fl.Field()
	var d time.Duration
	switch f.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		if f.Type() == reflect.TypeOf(time.Duration(0)) {
			d = time.Duration(f.Int())
		} else {
			d = time.Duration(f.Int()) * time.Second
		}
	default:
		return false
	}
	return IsValidInterval(d)
}

func validateLocation(fl validator.FieldLevel) bool {
	return IsValidLocation(fl.Field().String())
}

func validateHTTPStatus(fl validator.FieldLevel) bool {
	code := fl.Field().Int()
	return code >= 100 && code <= 599
}

func IsValidInterval(d time.Duration) bool {
	for _, allowed := range Intervals {
		if d == allowed {
			return true
		}
	}
	return false
}

func IsValidLocation(loc string) bool {
	for _, allowed := range Locations {
		if loc == allowed {
			return true
		}
	}
	return false
}
