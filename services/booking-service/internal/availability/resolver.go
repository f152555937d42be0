package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/clock"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

const DateLayout = "2006-01-02"

// BookedSlotsSource returns the spans of active appointments for a salon, date and staff member.
type BookedSlotsSource interface {
	ListBookedSlots(ctx context.Context, salonID, date, staffID string) ([]model.BookedSpan, error)
}

type Request struct {
	SalonID   string
	Date      string
	StaffID   string
	ServiceID string
	// DurationMinutes overrides the service duration when positive.
	DurationMinutes int
	// ExcludeAppointment leaves that appointment's own span out of the booked set.
	ExcludeAppointment string
}

type Result struct {
	Date    string                      `json:"date"`
	StaffID string                      `json:"staff_id"`
	Slots   []model.TimeSlot            `json:"slots"`
	Bands   []BandGroup                 `json:"bands"`
	ByStaff map[string][]model.TimeSlot `json:"by_staff,omitempty"`
}

type Resolver struct {
	catalog catalog.Provider
	booked  BookedSlotsSource
	grid    Grid
	loc     *time.Location
	now     func() time.Time
}

type Option func(*Resolver)

// WithClock sets the salon's location and time source used to close past slots.
func WithClock(loc *time.Location, now func() time.Time) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.loc = loc
		}
		if now != nil {
			r.now = now
		}
	}
}

func NewResolver(c catalog.Provider, booked BookedSlotsSource, grid Grid, opts ...Option) *Resolver {
	r := &Resolver{catalog: c, booked: booked, grid: grid, loc: time.UTC, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Grid() Grid { return r.grid }

// Resolve produces the slots for req. A real StaffID yields that staff member's
// grid; an empty or "any" StaffID collapses every available staff member's grid
// with MergeAny while keeping the per-staff grids in ByStaff.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	req.SalonID = strings.TrimSpace(req.SalonID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.SalonID == "" {
		return Result{}, fmt.Errorf("salon id required: %w", model.ErrInvalidRequest)
	}
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(req.Date), r.loc)
	if err != nil {
		return Result{}, fmt.Errorf("date %q must be YYYY-MM-DD: %w", req.Date, model.ErrInvalidRequest)
	}
	req.Date = day.Format(DateLayout)

	opts := SlotOptions{NotBefore: r.cutoff(day)}
	if req.ServiceID != "" {
		services, err := r.catalog.ListServices(ctx, req.SalonID)
		if err != nil {
			return Result{}, err
		}
		svc, ok := model.FindService(services, req.ServiceID)
		if !ok {
			return Result{}, fmt.Errorf("service %q: %w", req.ServiceID, model.ErrNotFound)
		}
		opts.DurationMinutes = svc.DurationMinutes
	}
	if req.DurationMinutes > 0 {
		opts.DurationMinutes = req.DurationMinutes
	}

	staff, err := r.catalog.ListStaff(ctx, req.SalonID)
	if err != nil {
		return Result{}, err
	}

	if req.StaffID != "" && req.StaffID != model.AnyStaff {
		member, ok := model.FindStaff(staff, req.StaffID)
		if !ok {
			return Result{}, fmt.Errorf("staff %q: %w", req.StaffID, model.ErrNotFound)
		}
		slots, err := r.staffSlots(ctx, req, member, opts)
		if err != nil {
			return Result{}, err
		}
		return Result{Date: req.Date, StaffID: member.ID, Slots: slots, Bands: GroupByBand(slots)}, nil
	}

	res := Result{Date: req.Date, StaffID: model.AnyStaff, ByStaff: map[string][]model.TimeSlot{}}
	var perStaff [][]model.TimeSlot
	for _, member := range staff {
		if !member.Available {
			continue
		}
		slots, err := r.staffSlots(ctx, req, member, opts)
		if err != nil {
			return Result{}, err
		}
		res.ByStaff[member.ID] = slots
		perStaff = append(perStaff, slots)
	}
	if len(perStaff) == 0 {
		// Nobody works: show the grid closed rather than empty.
		closed := opts
		closed.StaffUnavailable = true
		perStaff = append(perStaff, r.grid.Slots(req.Date, model.AnyStaff, nil, closed))
	}
	res.Slots = MergeAny(perStaff)
	res.Bands = GroupByBand(res.Slots)
	return res, nil
}

func (r *Resolver) staffSlots(ctx context.Context, req Request, member model.StaffMember, opts SlotOptions) ([]model.TimeSlot, error) {
	spans, err := r.booked.ListBookedSlots(ctx, req.SalonID, req.Date, member.ID)
	if err != nil {
		return nil, fmt.Errorf("booked slots for %s: %w", member.ID, err)
	}
	booked := SpanSet(spans).Without(req.ExcludeAppointment)
	opts.StaffUnavailable = !member.Available
	return r.grid.Slots(req.Date, member.ID, booked, opts), nil
}

// BookedSet fetches the conflict set for one staff member on one date.
func (r *Resolver) BookedSet(ctx context.Context, salonID, date, staffID string) (BookedSet, error) {
	spans, err := r.booked.ListBookedSlots(ctx, salonID, date, staffID)
	if err != nil {
		return nil, err
	}
	return SpanSet(spans), nil
}

// cutoff is the first minute still bookable on day: everything for past days,
// the current minute today, nothing for future days.
func (r *Resolver) cutoff(day time.Time) int {
	now := r.now().In(r.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)
	switch {
	case day.Before(today):
		return clock.MinutesPerDay
	case day.Equal(today):
		return now.Hour()*60 + now.Minute()
	default:
		return 0
	}
}
