package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/clock"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// MemoryRepository is an in-process arena of appointments keyed by id. Like
// the Postgres exclusion constraint it refuses two active appointments whose
// spans overlap for the same staff member on the same date.
type MemoryRepository struct {
	mu          sync.Mutex
	byID        map[string]model.Appointment
	order       []string
	idempotency map[string]string
	seq         int
	now         func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:        make(map[string]model.Appointment),
		idempotency: make(map[string]string),
		now:         time.Now,
	}
}

func spanOf(a model.Appointment) (model.BookedSpan, bool) {
	start, end, err := slotMinutes(a)
	if err != nil {
		return model.BookedSpan{}, false
	}
	return model.BookedSpan{AppointmentID: a.ID, Start: start, End: end}, true
}

// conflict reports another active appointment overlapping a's span. Caller holds mu.
func (m *MemoryRepository) conflict(a model.Appointment) bool {
	if !a.Status.Active() {
		return false
	}
	span, ok := spanOf(a)
	if !ok {
		return false
	}
	for id, other := range m.byID {
		if id == a.ID || !other.Status.Active() {
			continue
		}
		if other.SalonID != a.SalonID || other.StaffID != a.StaffID || other.Date != a.Date {
			continue
		}
		o, ok := spanOf(other)
		if ok && span.Start < o.End && o.Start < span.End {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) Create(_ context.Context, a model.Appointment, idempotencyKey string) (model.Appointment, bool, error) {
	if _, _, err := slotMinutes(a); err != nil {
		return model.Appointment{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idemKey := a.SalonID + "\x00" + idempotencyKey
	if idempotencyKey != "" {
		if id, ok := m.idempotency[idemKey]; ok {
			return m.byID[id], true, nil
		}
	}
	if _, exists := m.byID[a.ID]; exists {
		return model.Appointment{}, false, fmt.Errorf("create appointment %s: duplicate id: %w", a.ID, model.ErrInvalidRequest)
	}
	if m.conflict(a) {
		return model.Appointment{}, false, fmt.Errorf("create appointment %s %s: %w", a.Date, a.StartTime, model.ErrSlotConflict)
	}

	m.seq++
	a.Number = fmt.Sprintf("APT%03d", m.seq)
	now := m.now().UTC()
	if a.BookedAt.IsZero() {
		a.BookedAt = now
	}
	a.UpdatedAt = now
	m.byID[a.ID] = a
	m.order = append(m.order, a.ID)
	if idempotencyKey != "" {
		m.idempotency[idemKey] = a.ID
	}
	return a, false, nil
}

func (m *MemoryRepository) Get(_ context.Context, salonID, id string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok || a.SalonID != salonID {
		return model.Appointment{}, fmt.Errorf("get appointment %s: %w", id, model.ErrNotFound)
	}
	return a, nil
}

func (m *MemoryRepository) Save(_ context.Context, a model.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.byID[a.ID]
	if !ok || prev.SalonID != a.SalonID {
		return fmt.Errorf("save appointment %s: %w: %w", a.ID, model.ErrPersistence, model.ErrNotFound)
	}
	if m.conflict(a) {
		return fmt.Errorf("save appointment %s: %w: %w", a.ID, model.ErrPersistence, model.ErrSlotConflict)
	}
	m.byID[a.ID] = a
	return nil
}

// List returns copies ordered by date, start time, then booking order.
func (m *MemoryRepository) List(_ context.Context, salonID string) ([]model.Appointment, error) {
	m.mu.Lock()
	out := make([]model.Appointment, 0, len(m.order))
	for _, id := range m.order {
		if a := m.byID[id]; a.SalonID == salonID {
			out = append(out, a)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		si, _ := clock.ToMinutes(out[i].StartTime)
		sj, _ := clock.ToMinutes(out[j].StartTime)
		return si < sj
	})
	return out, nil
}

func (m *MemoryRepository) ListBookedSlots(_ context.Context, salonID, date, staffID string) ([]model.BookedSpan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var spans []model.BookedSpan
	for _, id := range m.order {
		a := m.byID[id]
		if a.SalonID != salonID || a.Date != date || !a.Status.Active() {
			continue
		}
		if staffID != "" && staffID != model.AnyStaff && a.StaffID != staffID {
			continue
		}
		if sp, ok := spanOf(a); ok {
			spans = append(spans, sp)
		}
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans, nil
}
