package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"

	"caixapdv/internal/apierror"
	"caixapdv/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0 and required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds the JSON body and runs go-playground/validator tags.
// Returns false after writing the error response; the caller must return.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON inválido: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

// bindQuery is bindAndValidate for query-string filters.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Parâmetros inválidos: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

func runValidation(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondError maps err through apierror.Status. Internal errors are logged
// with the request id and never echoed to the client.
func respondError(c *gin.Context, err error) {
	code, body := apierror.Status(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(code, body)
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, apierror.New("ID inválido"))
		return uuid.Nil, false
	}
	return id, true
}

func forbidStore(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("Acesso negado a esta loja"))
}

func pageParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
