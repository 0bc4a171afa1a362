package server

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/YuminosukeSato/attrition/pkg/errors"
)

var (
	errRateLimited    = errors.New("too many scoring requests")
	errUploadTooLarge = errors.New("upload too large")
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`
}

// classify maps an error to its HTTP status and a stable code.
func classify(err error) (int, string) {
	var (
		sm *errors.SchemaMismatchError
		df *errors.DataFormatError
		ve *errors.ValidationError
		pe *errors.PanicError
	)
	switch {
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge, "upload_too_large"
	case errors.As(err, &sm):
		return http.StatusUnprocessableEntity, "schema_mismatch"
	case errors.As(err, &df):
		return http.StatusBadRequest, "data_format"
	case errors.As(err, &ve):
		return http.StatusBadRequest, "invalid_parameter"
	case errors.As(err, &pe):
		return http.StatusInternalServerError, "panic"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	s.metrics.Errors.WithLabelValues(code).Inc()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", err, "code", code)
	} else {
		s.logger.Warn("request rejected", "code", code, "message", err.Error())
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{
		Code:    code,
		Message: err.Error(),
		Stage:   errors.StageOf(err),
	})
}
