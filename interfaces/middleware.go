package interfaces

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"hr-evaluator/domain"
)

// CallerResolver turns a bearer credential into a trusted caller.
type CallerResolver interface {
	ResolveCaller(credential string) (domain.Caller, error)
}

const callerKey = "caller"

// Authenticate resolves the bearer token and stores the caller on the context.
func Authenticate(resolver CallerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(c, domain.Unauthenticated("missing bearer token"))
			c.Abort()
			return
		}
		caller, err := resolver.ResolveCaller(strings.TrimSpace(token))
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

func callerFrom(c *gin.Context) domain.Caller {
	v, _ := c.Get(callerKey)
	caller, _ := v.(domain.Caller)
	return caller
}

var statusByKind = map[domain.Kind]int{
	domain.KindUnauthenticated:      http.StatusUnauthorized,
	domain.KindForbidden:            http.StatusForbidden,
	domain.KindNotFound:             http.StatusNotFound,
	domain.KindValidation:           http.StatusBadRequest,
	domain.KindStateConflict:        http.StatusConflict,
	domain.KindRoutingNotConfigured: http.StatusUnprocessableEntity,
	domain.KindInternal:             http.StatusInternalServerError,
}

// writeError renders a workflow error. Untyped errors are logged and hidden.
func writeError(c *gin.Context, err error) {
	var e *domain.Error
	if !errors.As(err, &e) {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "kind": domain.KindInternal})
		return
	}
	body := gin.H{"error": e.Message, "kind": e.Kind}
	if len(e.Violations) > 0 {
		body["violations"] = e.Violations
	}
	if e.Retryable {
		body["retryable"] = true
	}
	c.JSON(statusByKind[e.Kind], body)
}

// bindingError converts gin binding failures into a validation error listing
// every failed field.
func bindingError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		var v domain.Violations
		for _, fe := range ve {
			v.Add(fe.Field(), "failed %q validation", fe.Tag())
		}
		return v.Err("invalid request body")
	}
	return domain.Invalid("invalid request body", domain.Violation{Field: "body", Message: err.Error()})
}
