package worker

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	poperrs "github.com/jdholdren/popcorn/internal/errors"
)

// Unwraps the application error from temporal into a popcorn error if possible.
//
// Returns true if the error is convertible to a popcorn error.
// Returns false otherwise.
func asPoperr(err error, popErr **poperrs.Error) bool {
	if err == nil {
		return false
	}

	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || !appErr.HasDetails() {
		return false
	}
	return appErr.Details(popErr) == nil
}
