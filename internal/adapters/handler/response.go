package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	codeValidation    = "VALIDATION_ERROR"
	codeInvalidParam  = "INVALID_PARAMETER"
	codeStateConflict = "STATE_CONFLICT"
	codeUnavailable   = "SETTLEMENT_UNAVAILABLE"
	codeInconsistent  = "DISPATCH_INCONSISTENT"
	codeInternal      = "INTERNAL_ERROR"
)

func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
	}

	if response.Success {
		response.Data = data
	} else {
		if apiErr, ok := data.(*APIError); ok {
			response.Error = apiErr
		}
	}

	_ = json.NewEncoder(w).Encode(response)
}

func respondWithError(w http.ResponseWriter, err error) {
	var domainErr *domain.DomainError
	var stateErr *domain.StateError
	code := codeInternal
	message := err.Error()
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrPublishFailed):
		code = codeUnavailable
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrDispatchInconsistent):
		code = codeInconsistent
	case errors.As(err, &stateErr):
		code = codeStateConflict
		status = http.StatusConflict
	case errors.As(err, &domainErr):
		code = domainErr.Code
		message = domainErr.Message

		switch domainErr.Code {
		case domain.ErrCodeMissingRequiredField, domain.ErrCodeInvalidSchedule,
			domain.ErrCodeUnknownCaseType, domain.ErrCodeInvalidPeriod, codeValidation, codeInvalidParam:
			status = http.StatusBadRequest
		case domain.ErrCodeOrderNotFound:
			status = http.StatusNotFound
		case domain.ErrCodeReplayNotAllowed, domain.ErrCodeInvalidTransition:
			status = http.StatusConflict
		case domain.ErrCodeDiscrepancy:
			status = http.StatusUnprocessableEntity
		default:
			status = http.StatusBadRequest
		}
	}

	respondWithJSON(w, status, &APIError{
		Code:    code,
		Message: message,
	})
}
