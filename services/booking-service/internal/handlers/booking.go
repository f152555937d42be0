package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/query"
)

type BookingHandler struct {
	manager *booking.Manager
	catalog catalog.Provider
	logger  *slog.Logger
}

func NewBookingHandler(manager *booking.Manager, catalog catalog.Provider, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{manager: manager, catalog: catalog, logger: logger}
}

// appointmentView adds the dashboard's action buttons and badge to an appointment.
type appointmentView struct {
	model.Appointment
	AllowedActions []lifecycle.Action `json:"allowed_actions"`
	Style          model.DisplayStyle `json:"style"`
}

func viewOf(a model.Appointment) appointmentView {
	actions := lifecycle.AllowedActions(a.Status)
	if actions == nil {
		actions = []lifecycle.Action{}
	}
	return appointmentView{Appointment: a, AllowedActions: actions, Style: model.StyleFor(a.Status)}
}

func (h *BookingHandler) Services(w http.ResponseWriter, r *http.Request) {
	salonID, err := salonFromRequest(r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	services, err := h.catalog.ListServices(r.Context(), salonID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if services == nil {
		services = []model.Service{}
	}
	httpx.WriteJSON(w, http.StatusOK, services)
}

func (h *BookingHandler) Staff(w http.ResponseWriter, r *http.Request) {
	salonID, err := salonFromRequest(r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	staff, err := h.catalog.ListStaff(r.Context(), salonID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if staff == nil {
		staff = []model.StaffMember{}
	}
	httpx.WriteJSON(w, http.StatusOK, staff)
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	salonID, err := salonFromRequest(r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	res, err := h.manager.Availability(r.Context(), availability.Request{
		SalonID:   salonID,
		Date:      strings.TrimSpace(q.Get("date")),
		StaffID:   strings.TrimSpace(q.Get("staff_id")),
		ServiceID: strings.TrimSpace(q.Get("service_id")),
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

// Book creates an appointment. Repeating a request with the same
// Idempotency-Key returns the original appointment.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req model.BookingRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if req.SalonID == "" {
		req.SalonID = strings.TrimSpace(r.Header.Get("X-Business-Id"))
	}
	appt, replayed, err := h.manager.Book(r.Context(), req, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	httpx.WriteJSON(w, http.StatusCreated, viewOf(appt))
}

type listResponse struct {
	Items      []appointmentView `json:"items"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	Total      int               `json:"total"`
	TotalPages int               `json:"total_pages"`
	Criteria   query.Criteria    `json:"criteria"`
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	salonID, err := salonFromRequest(r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	criteria, page, pageSize, err := query.ParseCriteria(r.URL.Query())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	result, err := h.manager.List(r.Context(), salonID, criteria, page, pageSize)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	views := make([]appointmentView, 0, len(result.Items))
	for _, a := range result.Items {
		views = append(views, viewOf(a))
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{
		Items:      views,
		Page:       result.Page,
		PageSize:   result.PageSize,
		Total:      result.Total,
		TotalPages: result.TotalPages,
		Criteria:   criteria,
	})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	salonID, err := salonFromRequest(r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	appt, err := h.manager.Get(r.Context(), salonID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, viewOf(appt))
}

func (h *BookingHandler) CancelReasons(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, lifecycle.CancelReasons())
}

type persistenceFailure struct {
	Error       string          `json:"error"`
	Code        string          `json:"code"`
	Appointment appointmentView `json:"appointment"`
}

// writeTransition answers a lifecycle action. A persistence failure still
// carries the transitioned appointment so the dashboard can reconcile.
func (h *BookingHandler) writeTransition(w http.ResponseWriter, r *http.Request, appt model.Appointment, err error) {
	if err != nil {
		if m := classify(err); m.code == "persistence_error" {
			h.logger.ErrorContext(r.Context(), "transition not persisted", "appointment_id", appt.ID, "err", err)
			httpx.WriteJSON(w, m.status, persistenceFailure{Error: err.Error(), Code: m.code, Appointment: viewOf(appt)})
			return
		}
		writeDomainError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, viewOf(appt))
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	salonID, err := salonFromRequest(r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	var req lifecycle.ConfirmRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	appt, err := h.manager.Confirm(r.Context(), salonID, r.PathValue("id"), req)
	h.writeTransition(w, r, appt, err)
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	salonID, err := salonFromRequest(r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	var req lifecycle.RescheduleRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	appt, err := h.manager.Reschedule(r.Context(), salonID, r.PathValue("id"), req)
	h.writeTransition(w, r, appt, err)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	salonID, err := salonFromRequest(r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	var req lifecycle.CancelRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	appt, err := h.manager.Cancel(r.Context(), salonID, r.PathValue("id"), req)
	h.writeTransition(w, r, appt, err)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	salonID, err := salonFromRequest(r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	appt, err := h.manager.Complete(r.Context(), salonID, r.PathValue("id"))
	h.writeTransition(w, r, appt, err)
}

func (h *BookingHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	salonID, err := salonFromRequest(r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	appt, err := h.manager.NoShow(r.Context(), salonID, r.PathValue("id"))
	h.writeTransition(w, r, appt, err)
}
