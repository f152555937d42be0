package model

// AnyStaff is the "any available staff member" selection. It never matches a real staff id.
const AnyStaff = "any"

type Service struct {
	ID              string `json:"id"`
	SalonID         string `json:"salon_id"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
}

func (s Service) Summary() ServiceSummary {
	return ServiceSummary{ID: s.ID, Name: s.Name, PriceCents: s.PriceCents, DurationMinutes: s.DurationMinutes}
}

type StaffMember struct {
	ID        string `json:"id"`
	SalonID   string `json:"salon_id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// FindService returns the service with id, if present.
func FindService(services []Service, id string) (Service, bool) {
	for _, s := range services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

func FindStaff(staff []StaffMember, id string) (StaffMember, bool) {
	for _, s := range staff {
		if s.ID == id {
			return s, true
		}
	}
	return StaffMember{}, false
}

// TimeSlot is one bookable start time for one staff member on one date.
type TimeSlot struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time,omitempty"`
	StaffID   string `json:"staff_id"`
	Available bool   `json:"available"`
	Popular   bool   `json:"popular,omitempty"`
	LastSpot  bool   `json:"last_spot,omitempty"`
}
