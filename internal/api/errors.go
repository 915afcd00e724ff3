package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"pos-backend/internal/apperr"
	"pos-backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

func init() {
	// report validation failures under the JSON/query names clients send
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form", "uri"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	}
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error      string            `json:"error"`
	StatusCode int               `json:"statusCode"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// respondError renders err. Operational errors keep their message; anything
// else is logged in full and reported as a generic internal failure.
func respondError(c *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = &apperr.Error{Kind: apperr.KindInternal, Message: "unexpected error", Err: err}
	}

	status := appErr.StatusCode()
	if !appErr.Operational() {
		util.GetLogger().Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("kind", appErr.Kind.String()),
			zap.Error(err))

		message := "Internal Server Error"
		if appErr.Kind == apperr.KindExternalService {
			message = "Service Unavailable"
		}
		c.JSON(status, ErrorResponse{Error: message, StatusCode: status})
		return
	}

	c.JSON(status, ErrorResponse{Error: appErr.Message, StatusCode: status, Fields: appErr.Fields})
}

// bindError converts a gin binding failure into a validation error with field detail
func bindError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fieldPath(fe)] = describe(fe)
		}
		return apperr.Validation(fields, "Validation failed")
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return apperr.Validation(map[string]string{typeErr.Field: "has the wrong type"}, "Validation failed")
	case errors.As(err, &syntaxErr):
		return apperr.Validation(nil, "Malformed JSON body")
	}
	return apperr.Validation(map[string]string{"body": err.Error()}, "Invalid request body")
}

// fieldPath drops the top-level struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "uuid":
		return "must be a UUID"
	case "dive":
		return "is invalid"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func notFound(message string) error {
	return apperr.NotFound("%s", message)
}

var errNoRoute = &apperr.Error{Kind: apperr.KindNotFound, Message: http.StatusText(http.StatusNotFound)}
