package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/acme/scatter-gather/pkg/errors"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrCallTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperrors.ErrCallFailure):
		return http.StatusBadGateway
	case errors.Is(err, apperrors.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		return err
	}
	return fiber.NewError(code, err.Error())
}
