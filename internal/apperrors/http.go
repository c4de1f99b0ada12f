package apperrors

import (
	"errors"
	"net/http"
)

// statusMap pairs each sentinel with its HTTP status. Anything
// unmatched falls through to 500.
var statusMap = []struct {
	sentinel error
	status   int
}{
	{ErrValidation, http.StatusBadRequest},
	{ErrNotFound, http.StatusNotFound},
	{ErrConflict, http.StatusConflict},
	{ErrSubmission, http.StatusBadGateway},
	{ErrTimeout, http.StatusGatewayTimeout},
	{ErrUnavailable, http.StatusServiceUnavailable},
}

// HTTPStatus maps an error to the status code its class deserves.
func HTTPStatus(err error) int {
	for _, m := range statusMap {
		if errors.Is(err, m.sentinel) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}
