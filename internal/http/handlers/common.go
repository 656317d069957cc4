package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// BindJSONOrError ensures body is present and parsable. Binding failures are
// answered with the first offending field.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "request body is required", "")
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", bindMessage(err), "")
		return false
	}
	return true
}

func bindMessage(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+".")
		switch fe.Tag() {
		case "required":
			return field + " is required"
		case "email":
			return field + " must be a valid email"
		case "min":
			return field + " must have at least " + fe.Param() + " item(s) or characters"
		case "gte":
			return field + " must be at least " + fe.Param()
		}
		return field + " is invalid"
	}
	return "invalid JSON payload: " + err.Error()
}

// ok writes the success envelope merged with fields.
func ok(c *gin.Context, status int, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}
