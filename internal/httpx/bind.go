package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind decodes and validates the JSON body into dst. On failure it writes a
// 400 response and returns false.
func bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decodeBody(w, r, dst, false)
}

// bindOptional is bind for endpoints whose body may be absent. An empty body
// leaves dst at its zero value, whatever Content-Length says.
func bindOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decodeBody(w, r, dst, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		empty := errors.Is(err, io.EOF)
		if empty && optional {
			return true
		}
		msg := "invalid json"
		if empty {
			msg = "request body is required"
		}
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Error: msg})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid request"})
			return false
		}
		details := make([]fieldDetail, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, fieldDetail{Field: fieldPath(fe), Message: validationMessage(fe)})
		}
		writeJSON(w, http.StatusBadRequest, envelope{
			Success: false,
			Error:   "request validation failed",
			Details: details,
		})
		return false
	}
	return true
}

// fieldPath drops the struct name from the namespace, leaving e.g. items[0].quantity.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " item(s)"
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid"
	}
}
