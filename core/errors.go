package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	CourierErrorInvalidPayload     = "COURIER_INVALID_PAYLOAD"
	CourierErrorInvalidOrderNumber = "COURIER_INVALID_ORDER_NUMBER"
	CourierErrorOrderNotFound      = "COURIER_ORDER_NOT_FOUND"
	CourierErrorOrderUpdateFailed  = "COURIER_ORDER_UPDATE_FAILED"
	CourierErrorSideEffectFailed   = "COURIER_SIDE_EFFECT_FAILED"
	CourierErrorUnauthorized       = "COURIER_UNAUTHORIZED"
	CourierErrorConflict           = "COURIER_CONFLICT"
	CourierErrorInternal           = "COURIER_INTERNAL_ERROR"
)

// CourierErrorMapper normalizes arbitrary errors into the envelope the HTTP
// layer serializes. Rich errors pass through with their code and text code
// backfilled from the category.
func CourierErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureCourierErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "order not found"), strings.Contains(msg, "no matching order"):
		return newCourierError(err.Error(), goerrors.CategoryNotFound, CourierErrorOrderNotFound)
	case strings.Contains(msg, "order number"), strings.Contains(msg, "leg suffix"):
		return newCourierError(err.Error(), goerrors.CategoryBadInput, CourierErrorInvalidOrderNumber)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"):
		return newCourierError(err.Error(), goerrors.CategoryBadInput, CourierErrorInvalidPayload)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureCourierErrorEnvelope(mapped)
}

func newCourierError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureCourierErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureCourierErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = courierHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultCourierTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultCourierTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return CourierErrorInvalidPayload
	case goerrors.CategoryNotFound:
		return CourierErrorOrderNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return CourierErrorUnauthorized
	case goerrors.CategoryConflict:
		return CourierErrorConflict
	case goerrors.CategoryOperation:
		return CourierErrorOrderUpdateFailed
	default:
		return CourierErrorInternal
	}
}

func courierHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
