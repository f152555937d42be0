// Package catalog is the service and staff lookup the scheduling core consumes.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Provider lists a salon's reference data. Unknown salons yield model.ErrNotFound.
type Provider interface {
	ListServices(ctx context.Context, salonID string) ([]model.Service, error)
	ListStaff(ctx context.Context, salonID string) ([]model.StaffMember, error)
}

// Static serves seeded catalog data from memory. Used in development and tests.
type Static struct {
	mu       sync.RWMutex
	services map[string][]model.Service
	staff    map[string][]model.StaffMember
}

func NewStatic() *Static {
	return &Static{
		services: map[string][]model.Service{},
		staff:    map[string][]model.StaffMember{},
	}
}

// AddSalon registers (or replaces) a salon's services and staff.
func (s *Static) AddSalon(salonID string, services []model.Service, staff []model.StaffMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc := make([]model.Service, len(services))
	for i, v := range services {
		v.SalonID = salonID
		svc[i] = v
	}
	st := make([]model.StaffMember, len(staff))
	for i, v := range staff {
		v.SalonID = salonID
		st[i] = v
	}
	s.services[salonID] = svc
	s.staff[salonID] = st
}

func (s *Static) ListServices(_ context.Context, salonID string) ([]model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[salonID]
	if !ok {
		return nil, fmt.Errorf("salon %q: %w", salonID, model.ErrNotFound)
	}
	out := make([]model.Service, len(svc))
	copy(out, svc)
	return out, nil
}

func (s *Static) ListStaff(_ context.Context, salonID string) ([]model.StaffMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.staff[salonID]
	if !ok {
		return nil, fmt.Errorf("salon %q: %w", salonID, model.ErrNotFound)
	}
	out := make([]model.StaffMember, len(st))
	copy(out, st)
	return out, nil
}

// DemoSalon seeds the catalog used when booking-service runs without Postgres.
func DemoSalon(s *Static, salonID string) {
	s.AddSalon(salonID,
		[]model.Service{
			{ID: "1", Name: "Haircut & Style", Category: "Hair", DurationMinutes: 60, PriceCents: 4500},
			{ID: "2", Name: "Hair Coloring", Category: "Hair", DurationMinutes: 120, PriceCents: 8500},
			{ID: "3", Name: "Manicure", Category: "Nails", DurationMinutes: 45, PriceCents: 3000},
			{ID: "4", Name: "Facial Treatment", Category: "Skin", DurationMinutes: 75, PriceCents: 6500},
		},
		[]model.StaffMember{
			{ID: "stf-1", Name: "Sarah Johnson", Available: true},
			{ID: "stf-2", Name: "Mike Chen", Available: true},
			{ID: "stf-3", Name: "Emma Davis", Available: false},
		},
	)
}
