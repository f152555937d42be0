package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/clock"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/wizard"
)

type errorMapping struct {
	status int
	code   string
}

// classify maps a domain error to its HTTP status and error code. A save that
// lost a slot race carries both ErrPersistence and ErrSlotConflict and is
// reported as the conflict.
func classify(err error) errorMapping {
	var incomplete *wizard.StepIncompleteError
	switch {
	case errors.Is(err, model.ErrPersistence) && !errors.Is(err, model.ErrSlotConflict):
		return errorMapping{http.StatusInternalServerError, "persistence_error"}
	case errors.As(err, &incomplete):
		return errorMapping{http.StatusBadRequest, "step_incomplete"}
	case errors.Is(err, wizard.ErrAlreadyFinalized):
		return errorMapping{http.StatusConflict, "already_finalized"}
	case errors.Is(err, wizard.ErrNoPreviousStep), errors.Is(err, wizard.ErrFinalStep), errors.Is(err, wizard.ErrNotAtFinalStep):
		return errorMapping{http.StatusConflict, "invalid_step"}
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return errorMapping{http.StatusConflict, "invalid_transition"}
	case errors.Is(err, model.ErrSlotConflict):
		return errorMapping{http.StatusConflict, "slot_conflict"}
	case errors.Is(err, model.ErrNotFound):
		return errorMapping{http.StatusNotFound, "not_found"}
	case errors.Is(err, model.ErrInvalidRequest), errors.Is(err, clock.ErrParse), errors.Is(err, clock.ErrInvalidDuration):
		return errorMapping{http.StatusBadRequest, "invalid_request"}
	case errors.Is(err, model.ErrNetworkError):
		return errorMapping{http.StatusServiceUnavailable, "unavailable"}
	default:
		return errorMapping{http.StatusInternalServerError, "server_error"}
	}
}

func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	m := classify(err)
	if m.status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "code", m.code, "err", err)
	}
	if model.Retryable(err) {
		w.Header().Set("X-Retryable", "true")
	}
	var details []string
	var incomplete *wizard.StepIncompleteError
	if errors.As(err, &incomplete) {
		details = incomplete.Missing
	}
	msg := err.Error()
	if m.code == "server_error" {
		msg = "internal error"
	}
	httpx.WriteError(w, m.status, m.code, msg, details...)
}

// decodeJSON reads a JSON body into v. An empty body is accepted when optional.
func decodeJSON(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		return fmt.Errorf("invalid json body: %w", model.ErrInvalidRequest)
	}
	return nil
}

// salonFromRequest reads the salon id from X-Business-Id, then salon_id.
func salonFromRequest(r *http.Request) (string, error) {
	salonID := strings.TrimSpace(r.Header.Get("X-Business-Id"))
	if salonID == "" {
		salonID = strings.TrimSpace(r.URL.Query().Get("salon_id"))
	}
	if salonID == "" {
		return "", fmt.Errorf("salon_id required: %w", model.ErrInvalidRequest)
	}
	return salonID, nil
}
