package lifecycle

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/clock"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

var now = time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)

func sample(status model.Status) model.Appointment {
	return model.Appointment{
		ID:        "a1",
		Number:    "APT001",
		SalonID:   "salon-1",
		StaffID:   "stf-1",
		Customer:  model.CustomerSummary{Name: "Ada Lovelace", Phone: "555-0100", Email: "ada@example.com"},
		Service:   model.ServiceSummary{ID: "1", Name: "Haircut", PriceCents: 4500, DurationMinutes: 60},
		Date:      "2026-02-01",
		StartTime: "10:00 AM",
		EndTime:   "11:00 AM",
		Status:    status,
		BookedAt:  now.Add(-time.Hour),
		UpdatedAt: now.Add(-time.Hour),
	}
}

func TestConfirmOnlyFromPending(t *testing.T) {
	got, fx, err := Confirm(sample(model.StatusPending), ConfirmRequest{NotifyEmail: true}, now)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got.Status != model.StatusConfirmed || !got.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected appointment: %+v", got)
	}
	if fx.Event != EventConfirmed || !fx.NotifyEmail || fx.NotifySMS {
		t.Fatalf("unexpected effects: %+v", fx)
	}

	for _, s := range []model.Status{model.StatusConfirmed, model.StatusCompleted, model.StatusCancelled, model.StatusNoShow} {
		in := sample(s)
		out, _, err := Confirm(in, ConfirmRequest{NotifyEmail: true, NotifySMS: true}, now)
		var te *TransitionError
		if !errors.As(err, &te) || te.From != s || te.Action != ActionConfirm {
			t.Fatalf("%s: expected TransitionError, got %v", s, err)
		}
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s: expected ErrInvalidTransition", s)
		}
		if !reflect.DeepEqual(in, out) {
			t.Fatalf("%s: appointment mutated on failed confirm", s)
		}
	}
}

func TestCancelledIsTerminal(t *testing.T) {
	cancelled, _, err := Cancel(sample(model.StatusConfirmed), CancelRequest{Reason: "Customer request"}, now)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	booked, _ := availability.NewBookedSet()

	if _, _, err := Confirm(cancelled, ConfirmRequest{}, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("confirm after cancel: %v", err)
	}
	if _, _, err := Reschedule(cancelled, RescheduleRequest{Date: "2026-02-02", StartTime: "09:00 AM"}, booked, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reschedule after cancel: %v", err)
	}
	if _, _, err := Cancel(cancelled, CancelRequest{Reason: "Customer request"}, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel after cancel: %v", err)
	}
	if got := AllowedActions(cancelled.Status); len(got) != 0 {
		t.Fatalf("cancelled should allow nothing, got %v", got)
	}
}

func TestRescheduleConflict(t *testing.T) {
	booked := availability.SpanSet([]model.BookedSpan{
		{AppointmentID: "a1", Start: 9*60 + 30, End: 10*60 + 30},
		{AppointmentID: "a2", Start: 11 * 60, End: 12 * 60},
		{AppointmentID: "a3", Start: 14 * 60, End: 15 * 60},
	})
	in := sample(model.StatusConfirmed)

	out, _, err := Reschedule(in, RescheduleRequest{Date: "2026-02-03", StartTime: "09:30 AM"}, booked, now)
	if !errors.Is(err, model.ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}
	if !model.Retryable(err) {
		t.Fatalf("slot conflicts should be retryable")
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("appointment mutated on conflict")
	}

	// 01:30-02:30 PM runs into the 02:00 PM booking.
	if _, _, err := Reschedule(in, RescheduleRequest{Date: "2026-02-03", StartTime: "01:30 PM"}, booked, now); !errors.Is(err, model.ErrSlotConflict) {
		t.Fatalf("tail overlap: expected ErrSlotConflict, got %v", err)
	}
	// 10:30-11:30 AM starts inside nothing but ends inside the 11:00 AM booking.
	if _, _, err := Reschedule(in, RescheduleRequest{Date: "2026-02-03", StartTime: "10:30 AM"}, booked, now); !errors.Is(err, model.ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}

	in.Service.DurationMinutes = 30
	out, fx, err := Reschedule(in, RescheduleRequest{Date: "2026-02-03", StartTime: "9:00 am", Reason: "running late", NotifyCustomer: true}, booked, now)
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if out.Date != "2026-02-03" || out.StartTime != "09:00 AM" || out.EndTime != "09:30 AM" {
		t.Fatalf("unexpected times: %s %s-%s", out.Date, out.StartTime, out.EndTime)
	}
	if out.Status != model.StatusConfirmed {
		t.Fatalf("status changed to %s", out.Status)
	}
	if fx.Event != EventRescheduled || !fx.NotifyEmail || !fx.NotifySMS || fx.PreviousDate != "2026-02-01" || fx.PreviousStartTime != "10:00 AM" || fx.Reason != "running late" {
		t.Fatalf("unexpected effects: %+v", fx)
	}

	_, quiet, err := Reschedule(in, RescheduleRequest{Date: "2026-02-03", StartTime: "10:30 AM"}, booked, now)
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if quiet.NotifyEmail || quiet.NotifySMS {
		t.Fatalf("no notification requested, got %+v", quiet)
	}
}

func TestRescheduleOwnSlotIsNotAConflict(t *testing.T) {
	booked, _ := availability.NewBookedSet("10:00 AM")
	in := sample(model.StatusPending)
	if _, _, err := Reschedule(in, RescheduleRequest{Date: in.Date, StartTime: "10:00 AM"}, booked, now); err != nil {
		t.Fatalf("own slot flagged as conflict: %v", err)
	}
	if _, _, err := Reschedule(in, RescheduleRequest{Date: "2026-02-02", StartTime: "10:00 AM"}, booked, now); !errors.Is(err, model.ErrSlotConflict) {
		t.Fatalf("same time on another date should conflict, got %v", err)
	}
}

func TestRescheduleWrapsPastMidnight(t *testing.T) {
	in := sample(model.StatusPending)
	in.Service.DurationMinutes = 45
	out, _, err := Reschedule(in, RescheduleRequest{Date: "2026-02-01", StartTime: "11:30 PM"}, nil, now)
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if out.EndTime != "12:15 AM" {
		t.Fatalf("end = %s", out.EndTime)
	}
}

func TestRescheduleRejectsMalformedInput(t *testing.T) {
	in := sample(model.StatusPending)
	if _, _, err := Reschedule(in, RescheduleRequest{Date: "tomorrow", StartTime: "09:00 AM"}, nil, now); !errors.Is(err, model.ErrInvalidRequest) {
		t.Fatalf("bad date: %v", err)
	}
	if _, _, err := Reschedule(in, RescheduleRequest{Date: "2026-02-01", StartTime: "13:00 PM"}, nil, now); !errors.Is(err, clock.ErrParse) {
		t.Fatalf("bad time: %v", err)
	}
	in.Service.DurationMinutes = 0
	if _, _, err := Reschedule(in, RescheduleRequest{Date: "2026-02-01", StartTime: "09:00 AM"}, nil, now); !errors.Is(err, model.ErrInvalidRequest) {
		t.Fatalf("zero duration: %v", err)
	}
}

func TestCancelReasons(t *testing.T) {
	tests := []struct {
		name    string
		req     CancelRequest
		wantErr bool
	}{
		{name: "known reason", req: CancelRequest{Reason: "Salon closed"}},
		{name: "other with notes", req: CancelRequest{Reason: "Other", Notes: "flooded"}},
		{name: "other without notes", req: CancelRequest{Reason: "Other", Notes: "  "}, wantErr: true},
		{name: "empty reason", req: CancelRequest{}, wantErr: true},
		{name: "unknown reason", req: CancelRequest{Reason: "bored"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sample(model.StatusPending)
			out, fx, err := Cancel(in, tt.req, now)
			if tt.wantErr {
				if !errors.Is(err, model.ErrInvalidRequest) {
					t.Fatalf("expected ErrInvalidRequest, got %v", err)
				}
				if !reflect.DeepEqual(in, out) {
					t.Fatalf("appointment mutated on rejected cancel")
				}
				return
			}
			if err != nil {
				t.Fatalf("Cancel: %v", err)
			}
			if out.Status != model.StatusCancelled || out.CancelReason != tt.req.Reason {
				t.Fatalf("unexpected appointment: %+v", out)
			}
			if fx.Event != EventCancelled {
				t.Fatalf("unexpected effects: %+v", fx)
			}
		})
	}
	if got := CancelReasons(); got[len(got)-1] != ReasonOther {
		t.Fatalf("Other should be last, got %v", got)
	}
}

func TestCancelEffects(t *testing.T) {
	out, fx, err := Cancel(sample(model.StatusConfirmed), CancelRequest{Reason: "Other", Notes: "moved away", ProcessRefund: true, NotifyCustomer: true}, now)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if out.Notes != "moved away" || !fx.ProcessRefund || !fx.NotifyEmail || !fx.NotifySMS || !fx.Notifies() {
		t.Fatalf("unexpected result: %+v %+v", out, fx)
	}
}

func TestCompleteAndNoShow(t *testing.T) {
	if _, _, err := Complete(sample(model.StatusPending), now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete from pending: %v", err)
	}
	done, fx, err := Complete(sample(model.StatusConfirmed), now)
	if err != nil || done.Status != model.StatusCompleted || fx.Event != EventCompleted {
		t.Fatalf("Complete: %+v %v", done, err)
	}
	missed, fx, err := NoShow(sample(model.StatusConfirmed), now)
	if err != nil || missed.Status != model.StatusNoShow || fx.Event != EventNoShow {
		t.Fatalf("NoShow: %+v %v", missed, err)
	}
	if _, _, err := NoShow(missed, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("no-show twice: %v", err)
	}
}

func TestAllowedActions(t *testing.T) {
	tests := map[model.Status][]Action{
		model.StatusPending:   {ActionConfirm, ActionReschedule, ActionCancel},
		model.StatusConfirmed: {ActionReschedule, ActionCancel, ActionComplete, ActionNoShow},
		model.StatusCompleted: nil,
		model.StatusCancelled: nil,
		model.StatusNoShow:    nil,
	}
	for status, want := range tests {
		got := AllowedActions(status)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: got %v, want %v", status, got, want)
		}
		if status.Terminal() != (len(want) == 0) {
			t.Fatalf("%s: Terminal disagrees with AllowedActions", status)
		}
	}
}
