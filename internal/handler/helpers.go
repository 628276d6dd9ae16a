package handler

import (
	"errors"
	"net/http"
	"reflect"

	"packline/internal/apierror"
	"packline/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondServiceError maps the domain error taxonomy onto HTTP statuses:
//
//	404 — aggregate not found
//	409 — stock balance or concurrency conflict (retryable)
//	422 — request semantically impossible against current state
//	500 — everything else (logged by the ErrorHandler middleware)
func respondServiceError(c *gin.Context, err error) {
	var (
		insufficient *model.InsufficientStockError
		notFound     *model.VariantNotFoundError
		over         *model.OverRequestedQuantityError
		invariant    *model.CompositionInvariantError
		shortfall    *model.PlanShortfallError
	)

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, apierror.New("packet stock not found"))
	case errors.Is(err, model.ErrConcurrentModification):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.Is(err, model.ErrNoStockToBreak):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.Is(err, model.ErrAlreadyLoose), errors.Is(err, model.ErrNotLoose):
		c.JSON(http.StatusUnprocessableEntity, apierror.New(err.Error()))
	case errors.As(err, &notFound), errors.As(err, &over), errors.As(err, &invariant), errors.As(err, &shortfall):
		c.JSON(http.StatusUnprocessableEntity, apierror.New(err.Error()))
	default:
		// Unexpected — let the middleware log it, keep the response opaque.
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("internal server error"))
	}
}
