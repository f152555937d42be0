package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/sessions"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/wizard"
)

var fixedNow = time.Date(2026, 1, 28, 10, 15, 0, 0, time.UTC)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	c := catalog.NewStatic()
	catalog.DemoSalon(c, "salon-1")
	repo := storage.NewMemoryRepository()
	now := func() time.Time { return fixedNow }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := booking.NewManager(booking.Config{
		Repo:     repo,
		Catalog:  c,
		Resolver: availability.NewResolver(c, repo, availability.DefaultGrid(), availability.WithClock(time.UTC, now)),
		Logger:   logger,
		Now:      now,
	})
	mux := http.NewServeMux()
	Register(mux, NewBookingHandler(m, c, logger), NewWizardHandler(sessions.NewMemoryStore(time.Minute), c, m, logger))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any, headers ...string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

type errorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Details []string `json:"details"`
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func bookingBody(at string) model.BookingRequest {
	return model.BookingRequest{
		SalonID:   "salon-1",
		ServiceID: "1",
		StaffID:   "stf-1",
		Date:      "2026-02-01",
		Time:      at,
		Customer: model.CustomerInfo{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
			Phone:     "555-0100",
		},
	}
}

func TestCatalogEndpoints(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodGet, "/api/v1/public/services?salon_id=salon-1", nil)
	expectStatus(t, resp, http.StatusOK)
	if services := decode[[]model.Service](t, resp); len(services) != 4 {
		t.Fatalf("expected 4 services, got %d", len(services))
	}

	resp = do(t, srv, http.MethodGet, "/api/v1/public/staff?salon_id=salon-1", nil)
	expectStatus(t, resp, http.StatusOK)
	if staff := decode[[]model.StaffMember](t, resp); len(staff) != 3 {
		t.Fatalf("expected 3 staff, got %d", len(staff))
	}

	resp = do(t, srv, http.MethodGet, "/api/v1/public/services?salon_id=nope", nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = do(t, srv, http.MethodGet, "/api/v1/public/services", nil)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestSlotsReflectBookings(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodPost, "/api/v1/public/book", bookingBody("09:30 AM"))
	expectStatus(t, resp, http.StatusCreated)

	resp = do(t, srv, http.MethodGet, "/api/v1/public/slots?salon_id=salon-1&date=2026-02-01&staff_id=stf-1&service_id=1", nil)
	expectStatus(t, resp, http.StatusOK)
	res := decode[availability.Result](t, resp)
	found := false
	for _, s := range res.Slots {
		if s.StartTime == "09:30 AM" {
			found = true
			if s.Available {
				t.Fatalf("09:30 AM should be taken: %+v", s)
			}
		}
	}
	if !found {
		t.Fatalf("09:30 AM missing from %+v", res.Slots)
	}
	// A one hour service at 09:00 or 10:00 would overlap the 09:30-10:30 booking.
	for _, s := range res.Slots {
		if (s.StartTime == "09:00 AM" || s.StartTime == "10:00 AM") && s.Available {
			t.Fatalf("%s overlaps the booking: %+v", s.StartTime, s)
		}
		if s.StartTime == "10:30 AM" && !s.Available {
			t.Fatalf("10:30 AM starts as the booking ends: %+v", s)
		}
	}

	resp = do(t, srv, http.MethodPost, "/api/v1/public/book", bookingBody("10:00 AM"))
	expectStatus(t, resp, http.StatusConflict)

	resp = do(t, srv, http.MethodGet, "/api/v1/public/slots?salon_id=salon-1&date=02/01/2026", nil)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestBookStatusCodes(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodPost, "/api/v1/public/book", bookingBody("09:30 AM"), "Idempotency-Key", "k-1")
	expectStatus(t, resp, http.StatusCreated)
	first := decode[appointmentView](t, resp)
	if first.Status != model.StatusPending || len(first.AllowedActions) == 0 {
		t.Fatalf("unexpected booking %+v", first)
	}

	resp = do(t, srv, http.MethodPost, "/api/v1/public/book", bookingBody("09:30 AM"), "Idempotency-Key", "k-1")
	expectStatus(t, resp, http.StatusCreated)
	if resp.Header.Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay header")
	}
	if again := decode[appointmentView](t, resp); again.ID != first.ID {
		t.Fatalf("replay returned %s, want %s", again.ID, first.ID)
	}

	resp = do(t, srv, http.MethodPost, "/api/v1/public/book", bookingBody("09:30 AM"))
	expectStatus(t, resp, http.StatusConflict)
	if resp.Header.Get("X-Retryable") != "true" {
		t.Fatalf("conflict should be retryable")
	}
	if body := decode[errorResponse](t, resp); body.Code != "slot_conflict" {
		t.Fatalf("unexpected code %q", body.Code)
	}

	resp = do(t, srv, http.MethodPost, "/api/v1/public/book", bookingBody("9h30"))
	expectStatus(t, resp, http.StatusBadRequest)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/public/book", bytes.NewBufferString("{not json"))
	raw, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer raw.Body.Close()
	expectStatus(t, raw, http.StatusBadRequest)
}

func TestWizardFlow(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodPost, "/api/v1/public/wizard", startRequest{SalonID: "salon-1"})
	expectStatus(t, resp, http.StatusCreated)
	started := decode[wizardResponse](t, resp)
	base := "/api/v1/public/wizard/" + started.SessionID
	if started.Wizard.Step != wizard.StepService || started.Wizard.CanAdvance {
		t.Fatalf("unexpected start %+v", started.Wizard)
	}

	resp = do(t, srv, http.MethodPost, base+"/advance", nil)
	expectStatus(t, resp, http.StatusBadRequest)
	if body := decode[errorResponse](t, resp); body.Code != "step_incomplete" || len(body.Details) != 1 || body.Details[0] != "service_id" {
		t.Fatalf("unexpected incomplete body %+v", body)
	}

	resp = do(t, srv, http.MethodPost, base+"/retreat", nil)
	expectStatus(t, resp, http.StatusConflict)

	str := func(s string) *string { return &s }
	steps := []wizard.Patch{
		{ServiceID: str("1")},
		{StaffID: str("stf-2")},
		{Date: str("2026-02-01"), Time: str("10:00 am")},
		{FirstName: str("Grace"), LastName: str("Hopper"), Email: str("grace@example.com"), Phone: str("555-0101")},
	}
	for i, p := range steps {
		resp = do(t, srv, http.MethodPatch, base, p)
		expectStatus(t, resp, http.StatusOK)
		resp = do(t, srv, http.MethodPost, base+"/advance", nil)
		expectStatus(t, resp, http.StatusOK)
		if got := decode[wizardResponse](t, resp); got.Wizard.Step != wizard.Step(i+2) {
			t.Fatalf("step %d: now at %v", i, got.Wizard.Step)
		}
	}

	resp = do(t, srv, http.MethodGet, base, nil)
	expectStatus(t, resp, http.StatusOK)
	snap := decode[wizardResponse](t, resp).Wizard
	if snap.Draft.Time != "10:00 AM" || snap.Draft.TotalPriceCents != 4500 {
		t.Fatalf("unexpected draft %+v", snap.Draft)
	}

	resp = do(t, srv, http.MethodPost, base+"/finalize", nil)
	expectStatus(t, resp, http.StatusCreated)
	done := decode[wizardResponse](t, resp)
	if done.Booking == nil || done.Booking.StaffID != "stf-2" || done.Booking.EndTime != "11:00 AM" || !done.Wizard.Finalized {
		t.Fatalf("unexpected finalize %+v", done)
	}

	resp = do(t, srv, http.MethodPost, base+"/finalize", nil)
	expectStatus(t, resp, http.StatusConflict)

	resp = do(t, srv, http.MethodDelete, base, nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp = do(t, srv, http.MethodGet, base, nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestDashboardLifecycle(t *testing.T) {
	srv := newServer(t)
	salon := []string{"X-Business-Id", "salon-1"}

	resp := do(t, srv, http.MethodPost, "/api/v1/public/book", bookingBody("09:30 AM"))
	expectStatus(t, resp, http.StatusCreated)
	appt := decode[appointmentView](t, resp)
	base := "/api/v1/appointments/" + appt.ID

	resp = do(t, srv, http.MethodPost, base+"/complete", nil, salon...)
	expectStatus(t, resp, http.StatusConflict)
	if body := decode[errorResponse](t, resp); body.Code != "invalid_transition" {
		t.Fatalf("unexpected code %q", body.Code)
	}

	resp = do(t, srv, http.MethodPost, base+"/confirm", nil, salon...)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[appointmentView](t, resp); got.Status != model.StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", got.Status)
	}

	resp = do(t, srv, http.MethodPost, base+"/cancel", map[string]any{"reason": "Bored"}, salon...)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = do(t, srv, http.MethodPost, base+"/cancel", map[string]any{"reason": "Customer request", "notify_customer": true}, salon...)
	expectStatus(t, resp, http.StatusOK)
	cancelled := decode[appointmentView](t, resp)
	if cancelled.Status != model.StatusCancelled || len(cancelled.AllowedActions) != 0 || cancelled.CancelReason != "Customer request" {
		t.Fatalf("unexpected cancel %+v", cancelled)
	}

	resp = do(t, srv, http.MethodGet, "/api/v1/appointments?status=cancelled&page_size=5", nil, salon...)
	expectStatus(t, resp, http.StatusOK)
	list := decode[listResponse](t, resp)
	if list.Total != 1 || len(list.Items) != 1 || list.Items[0].ID != appt.ID || list.PageSize != 5 {
		t.Fatalf("unexpected list %+v", list)
	}

	resp = do(t, srv, http.MethodGet, "/api/v1/appointments/missing", nil, salon...)
	expectStatus(t, resp, http.StatusNotFound)

	resp = do(t, srv, http.MethodGet, "/api/v1/appointments/cancel-reasons", nil)
	expectStatus(t, resp, http.StatusOK)
	if reasons := decode[[]string](t, resp); len(reasons) == 0 {
		t.Fatalf("expected cancel reasons")
	}
}

func TestRescheduleEndpoint(t *testing.T) {
	srv := newServer(t)
	salon := []string{"X-Business-Id", "salon-1"}

	resp := do(t, srv, http.MethodPost, "/api/v1/public/book", bookingBody("09:30 AM"))
	expectStatus(t, resp, http.StatusCreated)
	first := decode[appointmentView](t, resp)
	resp = do(t, srv, http.MethodPost, "/api/v1/public/book", bookingBody("11:00 AM"))
	expectStatus(t, resp, http.StatusCreated)

	path := "/api/v1/appointments/" + first.ID + "/reschedule"
	resp = do(t, srv, http.MethodPost, path, map[string]any{"date": "2026-02-01", "start_time": "11:00 AM"}, salon...)
	expectStatus(t, resp, http.StatusConflict)

	resp = do(t, srv, http.MethodPost, path, map[string]any{"date": "2026-02-01", "start_time": "02:00 PM", "notify_customer": true}, salon...)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[appointmentView](t, resp); got.StartTime != "02:00 PM" || got.EndTime != "03:00 PM" {
		t.Fatalf("unexpected reschedule %+v", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{model.ErrNotFound, http.StatusNotFound},
		{model.ErrInvalidRequest, http.StatusBadRequest},
		{model.ErrSlotConflict, http.StatusConflict},
		{model.ErrNetworkError, http.StatusServiceUnavailable},
		{model.ErrPersistence, http.StatusInternalServerError},
		{fmt.Errorf("%w: %w", model.ErrPersistence, model.ErrSlotConflict), http.StatusConflict},
		{wizard.ErrNotAtFinalStep, http.StatusConflict},
		{&wizard.StepIncompleteError{Step: wizard.StepStaff, Missing: []string{"staff_id"}}, http.StatusBadRequest},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := classify(tc.err).status; got != tc.status {
			t.Fatalf("classify(%v) = %d, want %d", tc.err, got, tc.status)
		}
	}
}
