package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	qerrors "github.com/guileen/memquery/algebra/errors"
	"github.com/guileen/memquery/logger"
	"github.com/guileen/memquery/plan"
)

// httpError carries a status for errors that do not come from the engine.
type httpError struct {
	status int
	err    error
}

func (e *httpError) Error() string { return e.err.Error() }
func (e *httpError) Unwrap() error { return e.err }

func badRequest(err error) error { return &httpError{status: http.StatusBadRequest, err: err} }
func notFound(err error) error   { return &httpError{status: http.StatusNotFound, err: err} }

// statusOf maps an error to its HTTP status and engine error code.
func statusOf(err error) (int, string) {
	var herr *httpError
	var verr *plan.ValidationError
	var qerr *qerrors.Error
	switch {
	case errors.As(err, &herr):
		return herr.status, ""
	case errors.As(err, &verr):
		return http.StatusBadRequest, "invalid_plan"
	case errors.As(err, &qerr):
		switch qerr.Code {
		case qerrors.ErrCodeUnknownRelation:
			return http.StatusNotFound, qerr.Code
		case qerrors.ErrCodeEvaluation, qerrors.ErrCodeRowLimit:
			return http.StatusUnprocessableEntity, qerr.Code
		}
		return http.StatusBadRequest, qerr.Code
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ""
	}
	return http.StatusInternalServerError, ""
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("write response failed", logger.Component("server"), logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		qerrors.LogError(r.Context(), err)
	} else {
		logger.DebugContext(r.Context(), "request failed",
			logger.Component("server"),
			logger.Int("status", status),
			logger.ErrorField(err),
		)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}
