package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "github.com/tasklit/tasklit/pkg/errors"
	"github.com/tasklit/tasklit/pkg/response"
	"github.com/tasklit/tasklit/pkg/validator"
)

// bindAndValidate decodes the JSON body into T and runs struct validation.
// On failure it writes the error response and reports false.
func bindAndValidate[T any](c *gin.Context, target *T) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		response.Error(c, apperrors.NewBadRequest("Invalid request payload"))
		return false
	}

	if err := validator.ValidateStruct(target); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			response.Error(c, apperrors.NewBadRequest(ve.Error()))
			return false
		}
		response.Error(c, apperrors.NewBadRequest("Validation failed"))
		return false
	}

	return true
}
