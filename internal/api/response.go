package api

import (
	"errors"
	"net/http"

	"csetrack/pkg/csetrack"
)

// ErrorResponse is the structured error body returned by the API.
type ErrorResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
}

// writeErrorResponse writes an error with the HTTP status derived from the
// business error code when the error is structured.
func writeErrorResponse(w http.ResponseWriter, httpStatus int, err error) {
	response := ErrorResponse{
		Code:    httpStatus,
		Message: err.Error(),
	}
	var coreErr *csetrack.Error
	if errors.As(err, &coreErr) {
		response.ErrorCode = string(coreErr.Code)
		httpStatus = mapErrorCodeToHTTPStatus(coreErr.Code)
		response.Code = httpStatus
	}
	writeJSON(w, httpStatus, response)
}

func mapErrorCodeToHTTPStatus(code csetrack.ErrorCode) int {
	switch code {
	case csetrack.ErrCodeInvalidInput, csetrack.ErrCodeValidation:
		return http.StatusBadRequest
	case csetrack.ErrCodeNotFound:
		return http.StatusNotFound
	case csetrack.ErrCodeDuplicate:
		return http.StatusConflict
	case csetrack.ErrCodeDatabase, csetrack.ErrCodeInternal:
		return http.StatusInternalServerError
	case csetrack.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
