package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fabrika/internal/apperr"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Коды ошибок, которыми будем пользоваться
const (
	ErrRequired        = "required"
	ErrValidation      = "validation_failed"
	ErrNotFound        = "not_found"
	ErrForbidden       = "forbidden"
	ErrIntegrity       = "integrity_violation"
	ErrUnauthenticated = "unauthenticated"
	ErrInternal        = "internal"
)

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

// respondError переводит доменные ошибки в HTTP-ответ с FieldError-списком.
func respondError(c *gin.Context, err error) {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": []FieldError{ferr(ErrValidation, ve.Attribute, ve.Reason)},
		})
		return
	}
	var nf *apperr.NotFoundError
	if errors.As(err, &nf) {
		c.JSON(http.StatusNotFound, gin.H{
			"errors": []FieldError{ferr(ErrNotFound, nf.Kind, nf.Error())},
		})
		return
	}
	var pe *apperr.PermissionError
	if errors.As(err, &pe) {
		c.JSON(http.StatusForbidden, gin.H{
			"errors": []FieldError{ferr(ErrForbidden, pe.Operation, pe.Error())},
		})
		return
	}
	var ie *apperr.IntegrityError
	if errors.As(err, &ie) {
		c.JSON(http.StatusConflict, gin.H{
			"errors": []FieldError{ferr(ErrIntegrity, ie.Kind, ie.Error())},
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"errors": []FieldError{ferr(ErrInternal, "", "internal error")},
	})
}
