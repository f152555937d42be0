// Package booking turns finalized drafts into appointments and applies
// lifecycle transitions against the repository, notifying downstream
// consumers of every change.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/clock"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/query"
)

var tracer = otel.Tracer("salonbook.booking")

// Repository owns appointment storage and slot arbitration.
type Repository interface {
	availability.BookedSlotsSource
	Create(ctx context.Context, a model.Appointment, idempotencyKey string) (model.Appointment, bool, error)
	Get(ctx context.Context, salonID, id string) (model.Appointment, error)
	Save(ctx context.Context, a model.Appointment) error
	List(ctx context.Context, salonID string) ([]model.Appointment, error)
}

type Config struct {
	Repo       Repository
	Catalog    catalog.Provider
	Resolver   *availability.Resolver
	Dispatcher notify.Dispatcher
	Metrics    *metrics.BookingMetrics
	Logger     *slog.Logger
	Now        func() time.Time
}

type Manager struct {
	repo       Repository
	catalog    catalog.Provider
	resolver   *availability.Resolver
	dispatcher notify.Dispatcher
	metrics    *metrics.BookingMetrics
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

func NewManager(cfg Config) *Manager {
	m := &Manager{
		repo:       cfg.Repo,
		catalog:    cfg.Catalog,
		resolver:   cfg.Resolver,
		dispatcher: cfg.Dispatcher,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		now:        cfg.Now,
		newID:      uuid.NewString,
	}
	if m.resolver == nil {
		m.resolver = availability.NewResolver(cfg.Catalog, cfg.Repo, availability.DefaultGrid())
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.dispatcher == nil {
		m.dispatcher = notify.LogDispatcher{Logger: m.logger}
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Availability resolves the slot grid for a salon date.
func (m *Manager) Availability(ctx context.Context, req availability.Request) (availability.Result, error) {
	ctx, span := tracer.Start(ctx, "booking.availability")
	span.SetAttributes(
		attribute.String("salon.id", req.SalonID),
		attribute.String("booking.date", req.Date),
		attribute.String("staff.id", req.StaffID),
	)
	started := time.Now()
	res, err := m.resolver.Resolve(ctx, req)
	scope := "staff"
	if req.StaffID == "" || req.StaffID == model.AnyStaff {
		scope = "any"
	}
	m.metrics.ObserveAvailability(scope, time.Since(started).Seconds())
	endSpan(span, err)
	return res, err
}

func validateRequest(req model.BookingRequest) error {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("salon_id", req.SalonID)
	check("service_id", req.ServiceID)
	check("staff_id", req.StaffID)
	check("date", req.Date)
	check("time", req.Time)
	check("first_name", req.Customer.FirstName)
	check("last_name", req.Customer.LastName)
	check("email", req.Customer.Email)
	check("phone", req.Customer.Phone)
	if len(missing) > 0 {
		return fmt.Errorf("missing %s: %w", strings.Join(missing, ", "), model.ErrInvalidRequest)
	}
	if !strings.Contains(req.Customer.Email, "@") {
		return fmt.Errorf("email %q is not valid: %w", req.Customer.Email, model.ErrInvalidRequest)
	}
	return nil
}

// Book creates a PENDING appointment from a finalized draft. A staff id of
// model.AnyStaff is resolved to the first staff member free at the requested
// time. A reused idempotencyKey returns the original appointment with replayed
// true and dispatches nothing.
func (m *Manager) Book(ctx context.Context, req model.BookingRequest, idempotencyKey string) (appt model.Appointment, replayed bool, err error) {
	ctx, span := tracer.Start(ctx, "booking.book")
	span.SetAttributes(
		attribute.String("salon.id", req.SalonID),
		attribute.String("service.id", req.ServiceID),
		attribute.String("staff.id", req.StaffID),
		attribute.String("booking.date", req.Date),
	)
	defer func() {
		m.metrics.ObserveBooking(bookingOutcome(replayed, err))
		endSpan(span, err)
	}()

	if err := validateRequest(req); err != nil {
		return model.Appointment{}, false, err
	}
	start, err := clock.Normalize(req.Time)
	if err != nil {
		return model.Appointment{}, false, fmt.Errorf("booking time: %w: %w", model.ErrInvalidRequest, err)
	}

	services, err := m.catalog.ListServices(ctx, req.SalonID)
	if err != nil {
		return model.Appointment{}, false, err
	}
	svc, ok := model.FindService(services, req.ServiceID)
	if !ok {
		return model.Appointment{}, false, fmt.Errorf("unknown service %q: %w", req.ServiceID, model.ErrInvalidRequest)
	}
	if req.TotalPriceCents != 0 && req.TotalPriceCents != svc.PriceCents {
		m.logger.WarnContext(ctx, "draft price differs from catalog; using catalog price",
			"service_id", svc.ID, "draft_price_cents", req.TotalPriceCents, "price_cents", svc.PriceCents)
	}

	res, err := m.resolver.Resolve(ctx, availability.Request{
		SalonID:   req.SalonID,
		Date:      req.Date,
		StaffID:   req.StaffID,
		ServiceID: svc.ID,
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Appointment{}, false, fmt.Errorf("booking: %w: %w", model.ErrInvalidRequest, err)
		}
		return model.Appointment{}, false, err
	}
	startMin, _ := clock.ToMinutes(start)
	if !m.resolver.Grid().Offers(startMin, svc.DurationMinutes) {
		return model.Appointment{}, false, fmt.Errorf("%s is outside bookable hours for %s: %w", start, svc.Name, model.ErrInvalidRequest)
	}
	staffID, ok := availability.AnyAvailable(res.Slots, start)
	if !ok {
		return model.Appointment{}, false, fmt.Errorf("%s %s is not available: %w", res.Date, start, model.ErrSlotConflict)
	}

	staff, err := m.catalog.ListStaff(ctx, req.SalonID)
	if err != nil {
		return model.Appointment{}, false, err
	}
	member, _ := model.FindStaff(staff, staffID)
	end, err := clock.AddDuration(start, svc.DurationMinutes)
	if err != nil {
		return model.Appointment{}, false, fmt.Errorf("service %s duration: %w: %w", svc.ID, model.ErrInvalidRequest, err)
	}

	now := m.now().UTC()
	appt = model.Appointment{
		ID:        m.newID(),
		SalonID:   req.SalonID,
		StaffID:   staffID,
		StaffName: member.Name,
		Customer: model.CustomerSummary{
			Name:  req.Customer.FullName(),
			Phone: strings.TrimSpace(req.Customer.Phone),
			Email: strings.TrimSpace(req.Customer.Email),
		},
		Service:         svc.Summary(),
		Date:            res.Date,
		StartTime:       start,
		EndTime:         end,
		Status:          model.StatusPending,
		SpecialRequests: req.SpecialRequests,
		BookedAt:        now,
		UpdatedAt:       now,
	}
	appt, replayed, err = m.repo.Create(ctx, appt, idempotencyKey)
	if err != nil {
		m.logger.InfoContext(ctx, "booking rejected", "salon_id", req.SalonID, "date", req.Date, "time", start, "err", err)
		return model.Appointment{}, false, err
	}
	span.SetAttributes(attribute.String("appointment.id", appt.ID), attribute.Bool("booking.replayed", replayed))
	if replayed {
		return appt, true, nil
	}
	m.logger.InfoContext(ctx, "appointment booked",
		"appointment_id", appt.ID, "number", appt.Number, "salon_id", appt.SalonID, "staff_id", appt.StaffID,
		"date", appt.Date, "start", appt.StartTime)
	m.dispatch(ctx, notify.BookedIntent(appt, now))
	return appt, false, nil
}

func bookingOutcome(replayed bool, err error) string {
	switch {
	case err == nil && replayed:
		return "replayed"
	case err == nil:
		return "created"
	case errors.Is(err, model.ErrSlotConflict):
		return "conflict"
	case errors.Is(err, model.ErrInvalidRequest), errors.Is(err, clock.ErrParse):
		return "invalid"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// dispatch hands an intent off without failing the caller.
func (m *Manager) dispatch(ctx context.Context, in notify.Intent) {
	err := m.dispatcher.Dispatch(ctx, in)
	m.metrics.ObserveDispatch(in.EventType, err)
	if err != nil {
		m.logger.WarnContext(ctx, "notification dispatch failed", "event_type", in.EventType, "appointment_id", in.AppointmentID, "err", err)
	}
}

type transitionFunc func(model.Appointment, time.Time) (model.Appointment, lifecycle.Effects, error)

// transition loads, transitions, saves and notifies. When saving fails the
// transitioned appointment is still returned, alongside an error wrapping
// model.ErrPersistence, so the caller can reconcile.
func (m *Manager) transition(ctx context.Context, action lifecycle.Action, salonID, id string, fn transitionFunc) (out model.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "booking."+string(action))
	span.SetAttributes(attribute.String("salon.id", salonID), attribute.String("appointment.id", id))
	defer func() {
		m.metrics.ObserveTransition(string(action), transitionOutcome(err))
		endSpan(span, err)
	}()

	current, err := m.repo.Get(ctx, salonID, id)
	if err != nil {
		return model.Appointment{}, err
	}
	now := m.now().UTC()
	next, fx, err := fn(current, now)
	if err != nil {
		return current, err
	}
	if err := m.repo.Save(ctx, next); err != nil {
		if !errors.Is(err, model.ErrPersistence) {
			err = fmt.Errorf("%w: %w", model.ErrPersistence, err)
		}
		m.logger.ErrorContext(ctx, "appointment transition not persisted",
			"action", action, "appointment_id", id, "status", next.Status, "err", err)
		return next, err
	}
	m.logger.InfoContext(ctx, "appointment transitioned",
		"action", action, "appointment_id", id, "from", current.Status, "to", next.Status)
	m.dispatch(ctx, notify.TransitionIntent(next, fx, now))
	return next, nil
}

func transitionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, model.ErrSlotConflict) && !errors.Is(err, model.ErrPersistence):
		return "conflict"
	case errors.Is(err, model.ErrPersistence):
		return "persistence_error"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrInvalidRequest), errors.Is(err, clock.ErrParse):
		return "invalid"
	default:
		return "error"
	}
}

func (m *Manager) Confirm(ctx context.Context, salonID, id string, req lifecycle.ConfirmRequest) (model.Appointment, error) {
	return m.transition(ctx, lifecycle.ActionConfirm, salonID, id, func(a model.Appointment, now time.Time) (model.Appointment, lifecycle.Effects, error) {
		return lifecycle.Confirm(a, req, now)
	})
}

// Reschedule moves an appointment to a grid slot that is open for its staff
// member on the target date: not in the past, staff available, and the
// service's full duration clear of every other active appointment.
func (m *Manager) Reschedule(ctx context.Context, salonID, id string, req lifecycle.RescheduleRequest) (model.Appointment, error) {
	return m.transition(ctx, lifecycle.ActionReschedule, salonID, id, func(a model.Appointment, now time.Time) (model.Appointment, lifecycle.Effects, error) {
		if !lifecycle.Can(lifecycle.ActionReschedule, a.Status) {
			return lifecycle.Reschedule(a, req, nil, now)
		}
		start, err := clock.Normalize(req.StartTime)
		if err != nil {
			return lifecycle.Reschedule(a, req, nil, now)
		}
		startMin, _ := clock.ToMinutes(start)
		if !m.resolver.Grid().Offers(startMin, a.Service.DurationMinutes) {
			return a, lifecycle.Effects{}, fmt.Errorf("%s is outside bookable hours: %w", req.StartTime, model.ErrInvalidRequest)
		}
		res, err := m.resolver.Resolve(ctx, availability.Request{
			SalonID:            salonID,
			Date:               req.Date,
			StaffID:            a.StaffID,
			DurationMinutes:    a.Service.DurationMinutes,
			ExcludeAppointment: a.ID,
		})
		if err != nil {
			return a, lifecycle.Effects{}, err
		}
		ownSlot := res.Date == a.Date && start == a.StartTime
		if _, ok := availability.AnyAvailable(res.Slots, start); !ok && !ownSlot {
			return a, lifecycle.Effects{}, fmt.Errorf("reschedule to %s %s is not available: %w", res.Date, start, model.ErrSlotConflict)
		}
		booked, err := m.resolver.BookedSet(ctx, salonID, res.Date, a.StaffID)
		if err != nil {
			return a, lifecycle.Effects{}, err
		}
		return lifecycle.Reschedule(a, req, booked.Without(a.ID), now)
	})
}

func (m *Manager) Cancel(ctx context.Context, salonID, id string, req lifecycle.CancelRequest) (model.Appointment, error) {
	return m.transition(ctx, lifecycle.ActionCancel, salonID, id, func(a model.Appointment, now time.Time) (model.Appointment, lifecycle.Effects, error) {
		return lifecycle.Cancel(a, req, now)
	})
}

func (m *Manager) Complete(ctx context.Context, salonID, id string) (model.Appointment, error) {
	return m.transition(ctx, lifecycle.ActionComplete, salonID, id, lifecycle.Complete)
}

func (m *Manager) NoShow(ctx context.Context, salonID, id string) (model.Appointment, error) {
	return m.transition(ctx, lifecycle.ActionNoShow, salonID, id, lifecycle.NoShow)
}

func (m *Manager) Get(ctx context.Context, salonID, id string) (model.Appointment, error) {
	return m.repo.Get(ctx, salonID, id)
}

// List projects the salon's appointments through c and returns one page.
func (m *Manager) List(ctx context.Context, salonID string, c query.Criteria, page, pageSize int) (query.Page[model.Appointment], error) {
	ctx, span := tracer.Start(ctx, "booking.list")
	span.SetAttributes(attribute.String("salon.id", salonID))
	all, err := m.repo.List(ctx, salonID)
	if err != nil {
		endSpan(span, err)
		return query.Page[model.Appointment]{}, err
	}
	out, err := query.Paginate(query.Filter(all, c), pageSize, page)
	endSpan(span, err)
	return out, err
}
