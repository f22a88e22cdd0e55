package api

import (
	"errors"

	"CoinPulse/internal/domain/models"
	xhttp "CoinPulse/pkg/http"
)

// toAppError maps domain errors onto client-facing errors.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrUnknownSymbol):
		return xhttp.NotFoundError(xhttp.CodePairNotFound, "Pair not found").WithError(err)
	case errors.Is(err, models.ErrInvalidOrder), errors.Is(err, models.ErrInvalidSettings):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}
