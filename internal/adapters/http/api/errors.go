package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/stagegate/internal/domain/model"
	"github.com/okian/stagegate/pkg/logger"
	"github.com/okian/stagegate/pkg/metrics"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrAuthRequired = errors.New("team and pwd query parameters are required")
)

// Wrap annotates err with the failing operation.
func Wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// NewKind returns kind annotated with op.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind returns an error matching both kind and cause.
func WrapKind(op string, kind, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, cause)
}

type errorMapping struct {
	kind   error
	status int
	code   string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{ //nolint:gochecknoglobals // static table
	{ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{ErrAuthRequired, http.StatusUnauthorized, "auth_required"},
	{model.ErrMalformedToken, http.StatusBadRequest, "malformed_token"},
	{model.ErrInvalidRegion, http.StatusBadRequest, "invalid_region"},
	{model.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{model.ErrBadCredential, http.StatusUnauthorized, "bad_credential"},
	{model.ErrRegionClosed, http.StatusForbidden, "region_closed"},
	{model.ErrUnknownStage, http.StatusNotFound, "unknown_stage"},
	{model.ErrNotFound, http.StatusNotFound, "not_found"},
	{model.ErrNameTaken, http.StatusConflict, "name_taken"},
	{model.ErrSkipAhead, http.StatusConflict, "skip_ahead"},
	{model.ErrStagesIncomplete, http.StatusConflict, "stages_incomplete"},
}

// statusFor maps an error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.kind) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeServiceError writes err with its mapped status. Internal errors are
// logged and their detail is not returned.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		metrics.RecordErrorByComponent("api", op)
		logger.Get().Named("api").Error(r.Context(), "request failed",
			logger.String("op", op),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
		writeError(w, status, code, nil)
		return
	}
	writeError(w, status, code, err)
}
