package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/logger"
	"go.uber.org/zap"
)

// Response is the envelope of every API reply.
type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error *Error      `json:"error,omitempty"`
}

// Error describes a failed or partially applied request.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Error codes.
const (
	CodeBadRequest     = "bad_request"
	CodeValidation     = "validation"
	CodeRollbackTarget = "rollback_target"
	CodeNotFound       = "not_found"
	CodeForbidden      = "forbidden"
	CodeOutOfTurn      = "out_of_turn"
	CodeConflict       = "conflict"
	CodeInvalidState   = "invalid_state"
	CodeUnresolved     = "unresolved_approvers"
	CodeInternal       = "internal"
)

// classify maps an engine error onto an HTTP status and error code.
func classify(err error) (int, *Error) {
	ret := &Error{Message: err.Error()}
	status := http.StatusInternalServerError
	validation := &errs.ValidationError{}
	switch {
	case errors.As(err, &validation):
		status, ret.Code, ret.Fields = http.StatusBadRequest, CodeValidation, validation.Fields
	case errors.Is(err, errs.ErrRollbackTarget):
		status, ret.Code = http.StatusBadRequest, CodeRollbackTarget
	case errors.Is(err, errs.ErrNotFound):
		status, ret.Code = http.StatusNotFound, CodeNotFound
	case errors.Is(err, errs.ErrForbidden):
		status, ret.Code = http.StatusForbidden, CodeForbidden
	case errors.Is(err, errs.ErrOutOfTurn):
		status, ret.Code = http.StatusConflict, CodeOutOfTurn
	case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrLockNotAcquired):
		status, ret.Code = http.StatusConflict, CodeConflict
	case errors.Is(err, errs.ErrInvalidState):
		status, ret.Code = http.StatusConflict, CodeInvalidState
	case errors.Is(err, errs.ErrUnresolved):
		status, ret.Code = http.StatusAccepted, CodeUnresolved
	default:
		ret.Code = CodeInternal
	}
	return status, ret
}

func writeJSON(w http.ResponseWriter, status int, response *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Warn("failed to encode response", zap.Error(err))
	}
}

// writeResult writes data with status, or the classified error. An
// unresolved approvers error still carries the persisted entity.
func writeResult(w http.ResponseWriter, status int, data interface{}, err error) {
	if err == nil {
		writeJSON(w, status, &Response{Data: data})
		return
	}
	errStatus, apiErr := classify(err)
	if errStatus == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		apiErr.Message = http.StatusText(errStatus)
	}
	if errStatus != http.StatusAccepted {
		data = nil
	}
	writeJSON(w, errStatus, &Response{Data: data, Error: apiErr})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, &Response{Error: &Error{Code: CodeBadRequest, Message: message}})
}
