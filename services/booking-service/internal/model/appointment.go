package model

import "time"

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
)

var allStatuses = []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}

// Statuses lists every status in dashboard order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal statuses allow no further transition.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Active appointments occupy their slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

type CustomerSummary struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type ServiceSummary struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PriceCents      int64  `json:"price_cents"`
	DurationMinutes int    `json:"duration_minutes"`
}

type Appointment struct {
	ID              string          `json:"id"`
	Number          string          `json:"number"`
	SalonID         string          `json:"salon_id"`
	StaffID         string          `json:"staff_id"`
	StaffName       string          `json:"staff_name,omitempty"`
	Customer        CustomerSummary `json:"customer"`
	Service         ServiceSummary  `json:"service"`
	Date            string          `json:"date"`
	StartTime       string          `json:"start_time"`
	EndTime         string          `json:"end_time"`
	Status          Status          `json:"status"`
	Notes           string          `json:"notes,omitempty"`
	SpecialRequests string          `json:"special_requests,omitempty"`
	CancelReason    string          `json:"cancellation_reason,omitempty"`
	BookedAt        time.Time       `json:"booked_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// BookedSpan is the [Start, End) minutes an active appointment occupies on its
// date. End may pass 1440 when the appointment runs past midnight.
type BookedSpan struct {
	AppointmentID string `json:"appointment_id,omitempty"`
	Start         int    `json:"start"`
	End           int    `json:"end"`
}

// BookingRequest is a finalized wizard draft handed to booking creation.
type BookingRequest struct {
	SalonID         string       `json:"salon_id"`
	ServiceID       string       `json:"service_id"`
	StaffID         string       `json:"staff_id"`
	Date            string       `json:"date"`
	Time            string       `json:"time"`
	TimeSlotID      string       `json:"time_slot_id,omitempty"`
	Customer        CustomerInfo `json:"customer"`
	SpecialRequests string       `json:"special_requests,omitempty"`
	TotalPriceCents int64        `json:"total_price_cents"`
}

type CustomerInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (c CustomerInfo) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}
