// Package lifecycle guards appointment status transitions. Every function
// takes an appointment by value and returns the transitioned copy; on error the
// input is returned untouched.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/clock"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

type Action string

const (
	ActionConfirm    Action = "confirm"
	ActionReschedule Action = "reschedule"
	ActionCancel     Action = "cancel"
	ActionComplete   Action = "complete"
	ActionNoShow     Action = "no-show"
)

var ErrInvalidTransition = errors.New("invalid appointment transition")

// TransitionError reports an action attempted from a status that forbids it.
type TransitionError struct {
	Action Action
	From   model.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s appointment in status %s", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Event names double as Kafka topics.
type Event string

const (
	EventConfirmed   Event = "appointment.confirmed"
	EventRescheduled Event = "appointment.rescheduled"
	EventCancelled   Event = "appointment.cancelled"
	EventCompleted   Event = "appointment.completed"
	EventNoShow      Event = "appointment.no_show"
)

// Effects are the side effects a transition asks the caller to perform.
type Effects struct {
	Event             Event  `json:"event"`
	NotifyEmail       bool   `json:"notify_email"`
	NotifySMS         bool   `json:"notify_sms"`
	ProcessRefund     bool   `json:"process_refund"`
	Reason            string `json:"reason,omitempty"`
	PreviousDate      string `json:"previous_date,omitempty"`
	PreviousStartTime string `json:"previous_start_time,omitempty"`
}

// Notifies reports whether any customer notification was requested.
func (e Effects) Notifies() bool { return e.NotifyEmail || e.NotifySMS }

var transitions = map[Action][]model.Status{
	ActionConfirm:    {model.StatusPending},
	ActionReschedule: {model.StatusPending, model.StatusConfirmed},
	ActionCancel:     {model.StatusPending, model.StatusConfirmed},
	ActionComplete:   {model.StatusConfirmed},
	ActionNoShow:     {model.StatusConfirmed},
}

var actionOrder = []Action{ActionConfirm, ActionReschedule, ActionCancel, ActionComplete, ActionNoShow}

// Can reports whether action is permitted from status.
func Can(action Action, status model.Status) bool {
	for _, s := range transitions[action] {
		if s == status {
			return true
		}
	}
	return false
}

// AllowedActions lists the actions permitted from status in display order.
func AllowedActions(status model.Status) []Action {
	var out []Action
	for _, a := range actionOrder {
		if Can(a, status) {
			out = append(out, a)
		}
	}
	return out
}

func guard(action Action, a model.Appointment) error {
	if !Can(action, a.Status) {
		return &TransitionError{Action: action, From: a.Status}
	}
	return nil
}

type ConfirmRequest struct {
	NotifyEmail bool `json:"notify_email"`
	NotifySMS   bool `json:"notify_sms"`
}

func Confirm(a model.Appointment, req ConfirmRequest, now time.Time) (model.Appointment, Effects, error) {
	if err := guard(ActionConfirm, a); err != nil {
		return a, Effects{}, err
	}
	out := a
	out.Status = model.StatusConfirmed
	out.UpdatedAt = now
	return out, Effects{Event: EventConfirmed, NotifyEmail: req.NotifyEmail, NotifySMS: req.NotifySMS}, nil
}

type RescheduleRequest struct {
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	Reason         string `json:"reason"`
	NotifyCustomer bool   `json:"notify_customer"`
}

// Occupied is the booked set for the target date and staff member, minus the
// span of the appointment being moved.
type Occupied interface {
	Overlaps(start, end int) bool
}

// Reschedule moves a to a new date and start time, keeping its status. The end
// time is recomputed from the booked service duration and the new
// [start, end) must not overlap booked. The appointment's own current slot
// never counts as a conflict. NotifyCustomer asks for both email and SMS.
func Reschedule(a model.Appointment, req RescheduleRequest, booked Occupied, now time.Time) (model.Appointment, Effects, error) {
	if err := guard(ActionReschedule, a); err != nil {
		return a, Effects{}, err
	}
	date := strings.TrimSpace(req.Date)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return a, Effects{}, fmt.Errorf("reschedule date %q must be YYYY-MM-DD: %w", req.Date, model.ErrInvalidRequest)
	}
	startMin, err := clock.ToMinutes(req.StartTime)
	if err != nil {
		return a, Effects{}, err
	}
	start := clock.ToLabel(startMin)
	end, err := clock.AddDuration(start, a.Service.DurationMinutes)
	if err != nil {
		return a, Effects{}, fmt.Errorf("reschedule %s: service duration %d: %w", a.Number, a.Service.DurationMinutes, model.ErrInvalidRequest)
	}
	ownSlot := date == a.Date && start == a.StartTime
	if !ownSlot && booked != nil && booked.Overlaps(startMin, startMin+a.Service.DurationMinutes) {
		return a, Effects{}, fmt.Errorf("reschedule to %s %s: %w", date, start, model.ErrSlotConflict)
	}

	out := a
	out.Date = date
	out.StartTime = start
	out.EndTime = end
	out.UpdatedAt = now
	return out, Effects{
		Event:             EventRescheduled,
		NotifyEmail:       req.NotifyCustomer,
		NotifySMS:         req.NotifyCustomer,
		Reason:            req.Reason,
		PreviousDate:      a.Date,
		PreviousStartTime: a.StartTime,
	}, nil
}

const ReasonOther = "Other"

var cancelReasons = []string{
	"Customer request",
	"Schedule conflict",
	"Staff unavailable",
	"Salon closed",
	"Duplicate booking",
	ReasonOther,
}

// CancelReasons returns the cancellation vocabulary.
func CancelReasons() []string {
	out := make([]string, len(cancelReasons))
	copy(out, cancelReasons)
	return out
}

func knownReason(reason string) bool {
	for _, r := range cancelReasons {
		if r == reason {
			return true
		}
	}
	return false
}

type CancelRequest struct {
	Reason         string `json:"reason"`
	Notes          string `json:"notes"`
	ProcessRefund  bool   `json:"process_refund"`
	NotifyCustomer bool   `json:"notify_customer"`
}

// Cancel records the reason verbatim. "Other" requires notes. NotifyCustomer
// asks for both email and SMS.
func Cancel(a model.Appointment, req CancelRequest, now time.Time) (model.Appointment, Effects, error) {
	if err := guard(ActionCancel, a); err != nil {
		return a, Effects{}, err
	}
	if strings.TrimSpace(req.Reason) == "" {
		return a, Effects{}, fmt.Errorf("cancel %s: reason is required: %w", a.Number, model.ErrInvalidRequest)
	}
	if !knownReason(req.Reason) {
		return a, Effects{}, fmt.Errorf("cancel %s: unknown reason %q: %w", a.Number, req.Reason, model.ErrInvalidRequest)
	}
	notes := strings.TrimSpace(req.Notes)
	if req.Reason == ReasonOther && notes == "" {
		return a, Effects{}, fmt.Errorf("cancel %s: notes are required when reason is %s: %w", a.Number, ReasonOther, model.ErrInvalidRequest)
	}

	out := a
	out.Status = model.StatusCancelled
	out.CancelReason = req.Reason
	if notes != "" {
		out.Notes = notes
	}
	out.UpdatedAt = now
	return out, Effects{
		Event:         EventCancelled,
		NotifyEmail:   req.NotifyCustomer,
		NotifySMS:     req.NotifyCustomer,
		ProcessRefund: req.ProcessRefund,
		Reason:        req.Reason,
	}, nil
}

func Complete(a model.Appointment, now time.Time) (model.Appointment, Effects, error) {
	if err := guard(ActionComplete, a); err != nil {
		return a, Effects{}, err
	}
	out := a
	out.Status = model.StatusCompleted
	out.UpdatedAt = now
	return out, Effects{Event: EventCompleted}, nil
}

func NoShow(a model.Appointment, now time.Time) (model.Appointment, Effects, error) {
	if err := guard(ActionNoShow, a); err != nil {
		return a, Effects{}, err
	}
	out := a
	out.Status = model.StatusNoShow
	out.UpdatedAt = now
	return out, Effects{Event: EventNoShow}, nil
}
