package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/sessions"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/wizard"
)

// WizardHandler drives the public booking flow. Each request loads the
// session, applies one wizard transition and stores the result.
type WizardHandler struct {
	sessions sessions.Store
	catalog  catalog.Provider
	manager  *booking.Manager
	logger   *slog.Logger
}

func NewWizardHandler(store sessions.Store, catalog catalog.Provider, manager *booking.Manager, logger *slog.Logger) *WizardHandler {
	return &WizardHandler{sessions: store, catalog: catalog, manager: manager, logger: logger}
}

type wizardResponse struct {
	SessionID string           `json:"session_id"`
	Wizard    wizard.Snapshot  `json:"wizard"`
	Booking   *appointmentView `json:"appointment,omitempty"`
}

type startRequest struct {
	SalonID string `json:"salon_id"`
}

func (h *WizardHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if req.SalonID == "" {
		id, err := salonFromRequest(r)
		if err != nil {
			writeDomainError(w, r, h.logger, err)
			return
		}
		req.SalonID = id
	}
	services, err := h.catalog.ListServices(r.Context(), strings.TrimSpace(req.SalonID))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	wz := wizard.New(strings.TrimSpace(req.SalonID), services)
	id, err := h.sessions.Create(r.Context(), wz)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, wizardResponse{SessionID: id, Wizard: wz.Snapshot()})
}

func (h *WizardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	wz, err := h.sessions.Load(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, wizardResponse{SessionID: id, Wizard: wz.Snapshot()})
}

// apply runs one transition against the stored session and saves the result.
func (h *WizardHandler) apply(w http.ResponseWriter, r *http.Request, fn func(wizard.Wizard) (wizard.Wizard, error)) {
	id := r.PathValue("id")
	wz, err := h.sessions.Load(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	next, err := fn(wz)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if err := h.sessions.Save(r.Context(), id, next); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, wizardResponse{SessionID: id, Wizard: next.Snapshot()})
}

func (h *WizardHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch wizard.Patch
	if err := decodeJSON(r, &patch, false); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	h.apply(w, r, func(wz wizard.Wizard) (wizard.Wizard, error) { return wz.UpdateDraft(patch) })
}

func (h *WizardHandler) Advance(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, wizard.Wizard.Advance)
}

func (h *WizardHandler) Retreat(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, wizard.Wizard.Retreat)
}

// Finalize books the draft. The session id doubles as the idempotency key,
// so a retried finalize after a lost response replays the same appointment.
// A failed booking leaves the session open for the customer to pick again.
func (h *WizardHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	wz, err := h.sessions.Load(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	done, req, err := wz.Finalize()
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	appt, _, err := h.manager.Book(r.Context(), req, "wizard:"+id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if err := h.sessions.Save(r.Context(), id, done); err != nil {
		h.logger.WarnContext(r.Context(), "wizard session not marked finalized", "session_id", id, "appointment_id", appt.ID, "err", err)
	}
	view := viewOf(appt)
	httpx.WriteJSON(w, http.StatusCreated, wizardResponse{SessionID: id, Wizard: done.Snapshot(), Booking: &view})
}

func (h *WizardHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
