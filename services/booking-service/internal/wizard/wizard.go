// Package wizard is the customer-facing booking flow. A Wizard is a value:
// every transition returns a new Wizard and leaves the receiver untouched, so a
// UI can render any snapshot and discard it freely.
package wizard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/clock"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

type Step int

const (
	StepService Step = iota + 1
	StepStaff
	StepDateTime
	StepCustomerInfo
	StepConfirmation
)

func (s Step) String() string {
	switch s {
	case StepService:
		return "SERVICE"
	case StepStaff:
		return "STAFF"
	case StepDateTime:
		return "DATETIME"
	case StepCustomerInfo:
		return "CUSTOMER_INFO"
	case StepConfirmation:
		return "CONFIRMATION"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

func (s Step) valid() bool { return s >= StepService && s <= StepConfirmation }

var (
	ErrStepIncomplete   = errors.New("wizard step incomplete")
	ErrNoPreviousStep   = errors.New("wizard is at the first step")
	ErrFinalStep        = errors.New("wizard is at the final step")
	ErrNotAtFinalStep   = errors.New("wizard can only be finalized at the confirmation step")
	ErrAlreadyFinalized = errors.New("booking draft already finalized")
)

// StepIncompleteError names the fields blocking progress from Step.
type StepIncompleteError struct {
	Step    Step
	Missing []string
}

func (e *StepIncompleteError) Error() string {
	return fmt.Sprintf("step %s incomplete: missing %s", e.Step, strings.Join(e.Missing, ", "))
}

func (e *StepIncompleteError) Unwrap() error { return ErrStepIncomplete }

// Draft is the in-progress booking. Empty strings are unset.
type Draft struct {
	SalonID         string             `json:"salon_id"`
	ServiceID       string             `json:"service_id,omitempty"`
	StaffID         string             `json:"staff_id,omitempty"`
	Date            string             `json:"date,omitempty"`
	Time            string             `json:"time,omitempty"`
	TimeSlotID      string             `json:"time_slot_id,omitempty"`
	Customer        model.CustomerInfo `json:"customer"`
	SpecialRequests string             `json:"special_requests,omitempty"`
	TotalPriceCents int64              `json:"total_price_cents"`
}

// Patch carries the fields to change; nil fields are left alone.
type Patch struct {
	ServiceID       *string `json:"service_id,omitempty"`
	StaffID         *string `json:"staff_id,omitempty"`
	Date            *string `json:"date,omitempty"`
	Time            *string `json:"time,omitempty"`
	TimeSlotID      *string `json:"time_slot_id,omitempty"`
	FirstName       *string `json:"first_name,omitempty"`
	LastName        *string `json:"last_name,omitempty"`
	Email           *string `json:"email,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	SpecialRequests *string `json:"special_requests,omitempty"`
}

type Wizard struct {
	step      Step
	draft     Draft
	services  []model.Service
	finalized bool
}

// New opens an empty draft for salonID. services prices the draft.
func New(salonID string, services []model.Service) Wizard {
	return Wizard{
		step:     StepService,
		draft:    Draft{SalonID: salonID},
		services: services,
	}
}

func (w Wizard) Step() Step       { return w.step }
func (w Wizard) Draft() Draft     { return w.draft }
func (w Wizard) Finalized() bool  { return w.finalized }
func (w Wizard) CanAdvance() bool { return w.step < StepConfirmation && len(w.Missing()) == 0 }

// Missing lists the fields the current step still needs.
func (w Wizard) Missing() []string {
	return missingFor(w.step, w.draft)
}

func missingFor(step Step, d Draft) []string {
	var missing []string
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }
	switch step {
	case StepService:
		if blank(d.ServiceID) {
			missing = append(missing, "service_id")
		}
	case StepStaff:
		if blank(d.StaffID) {
			missing = append(missing, "staff_id")
		}
	case StepDateTime:
		if blank(d.Date) {
			missing = append(missing, "date")
		}
		if blank(d.Time) {
			missing = append(missing, "time")
		}
	case StepCustomerInfo:
		if blank(d.Customer.FirstName) {
			missing = append(missing, "first_name")
		}
		if blank(d.Customer.LastName) {
			missing = append(missing, "last_name")
		}
		if blank(d.Customer.Email) {
			missing = append(missing, "email")
		}
		if blank(d.Customer.Phone) {
			missing = append(missing, "phone")
		}
	}
	return missing
}

// Advance moves to the next step when the current step is complete.
func (w Wizard) Advance() (Wizard, error) {
	if w.finalized {
		return w, ErrAlreadyFinalized
	}
	if w.step >= StepConfirmation {
		return w, ErrFinalStep
	}
	if missing := w.Missing(); len(missing) > 0 {
		return w, &StepIncompleteError{Step: w.step, Missing: missing}
	}
	next := w
	next.step++
	return next, nil
}

// Retreat moves back one step. It only fails at the first step.
func (w Wizard) Retreat() (Wizard, error) {
	if w.finalized {
		return w, ErrAlreadyFinalized
	}
	if w.step <= StepService {
		return w, ErrNoPreviousStep
	}
	prev := w
	prev.step--
	return prev, nil
}

// UpdateDraft merges p into the draft without changing step. A new service id
// reprices the draft (0 when the id is not in the catalog). Changing the date or
// staff member without also picking a time clears the previously chosen time.
func (w Wizard) UpdateDraft(p Patch) (Wizard, error) {
	if w.finalized {
		return w, ErrAlreadyFinalized
	}
	d := w.draft

	if p.Date != nil {
		date := strings.TrimSpace(*p.Date)
		if date != "" {
			if _, err := time.Parse("2006-01-02", date); err != nil {
				return w, fmt.Errorf("date %q must be YYYY-MM-DD: %w", date, model.ErrInvalidRequest)
			}
		}
		if date != d.Date && p.Time == nil {
			d.Time, d.TimeSlotID = "", ""
		}
		d.Date = date
	}
	if p.StaffID != nil {
		staffID := strings.TrimSpace(*p.StaffID)
		if staffID != d.StaffID && p.Time == nil {
			d.Time, d.TimeSlotID = "", ""
		}
		d.StaffID = staffID
	}
	if p.Time != nil {
		label := strings.TrimSpace(*p.Time)
		if label != "" {
			n, err := clock.Normalize(label)
			if err != nil {
				return w, err
			}
			label = n
		}
		d.Time = label
		if p.TimeSlotID == nil {
			d.TimeSlotID = ""
		}
	}
	if p.TimeSlotID != nil {
		d.TimeSlotID = strings.TrimSpace(*p.TimeSlotID)
	}
	if p.ServiceID != nil {
		d.ServiceID = strings.TrimSpace(*p.ServiceID)
		d.TotalPriceCents = 0
		if svc, ok := model.FindService(w.services, d.ServiceID); ok {
			d.TotalPriceCents = svc.PriceCents
		}
	}
	setTrimmed(&d.Customer.FirstName, p.FirstName)
	setTrimmed(&d.Customer.LastName, p.LastName)
	setTrimmed(&d.Customer.Email, p.Email)
	setTrimmed(&d.Customer.Phone, p.Phone)
	if p.SpecialRequests != nil {
		d.SpecialRequests = *p.SpecialRequests
	}

	next := w
	next.draft = d
	return next, nil
}

func setTrimmed(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// Finalize consumes the draft at the confirmation step. It can succeed once.
func (w Wizard) Finalize() (Wizard, model.BookingRequest, error) {
	if w.finalized {
		return w, model.BookingRequest{}, ErrAlreadyFinalized
	}
	if w.step != StepConfirmation {
		return w, model.BookingRequest{}, ErrNotAtFinalStep
	}
	for s := StepService; s < StepConfirmation; s++ {
		if missing := missingFor(s, w.draft); len(missing) > 0 {
			return w, model.BookingRequest{}, &StepIncompleteError{Step: s, Missing: missing}
		}
	}
	d := w.draft
	req := model.BookingRequest{
		SalonID:         d.SalonID,
		ServiceID:       d.ServiceID,
		StaffID:         d.StaffID,
		Date:            d.Date,
		Time:            d.Time,
		TimeSlotID:      d.TimeSlotID,
		Customer:        d.Customer,
		SpecialRequests: d.SpecialRequests,
		TotalPriceCents: d.TotalPriceCents,
	}
	done := w
	done.finalized = true
	return done, req, nil
}
