package storage

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// CatalogRepository reads salon services and staff from Postgres.
type CatalogRepository struct {
	conn db.Conn
}

func NewCatalogRepository(conn db.Conn) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

func (r *CatalogRepository) salonExists(ctx context.Context, salonID string) error {
	var exists bool
	if err := r.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM salons WHERE id = $1)`, salonID).Scan(&exists); err != nil {
		return fmt.Errorf("lookup salon %s: %w: %w", salonID, classify(err), err)
	}
	if !exists {
		return fmt.Errorf("salon %s: %w", salonID, model.ErrNotFound)
	}
	return nil
}

func (r *CatalogRepository) ListServices(ctx context.Context, salonID string) ([]model.Service, error) {
	if err := r.salonExists(ctx, salonID); err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, `
		SELECT id, salon_id, name, category, duration_minutes, price_cents
		FROM services
		WHERE salon_id = $1
		ORDER BY sort_order ASC, id ASC
	`, salonID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w: %w", classify(err), err)
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.SalonID, &s.Name, &s.Category, &s.DurationMinutes, &s.PriceCents); err != nil {
			return nil, fmt.Errorf("scan service: %w: %w", model.ErrServerError, err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list services: %w: %w", classify(err), err)
	}
	return services, nil
}

func (r *CatalogRepository) ListStaff(ctx context.Context, salonID string) ([]model.StaffMember, error) {
	if err := r.salonExists(ctx, salonID); err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, `
		SELECT id, salon_id, name, available
		FROM staff
		WHERE salon_id = $1
		ORDER BY sort_order ASC, id ASC
	`, salonID)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w: %w", classify(err), err)
	}
	defer rows.Close()

	var staff []model.StaffMember
	for rows.Next() {
		var m model.StaffMember
		if err := rows.Scan(&m.ID, &m.SalonID, &m.Name, &m.Available); err != nil {
			return nil, fmt.Errorf("scan staff: %w: %w", model.ErrServerError, err)
		}
		staff = append(staff, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list staff: %w: %w", classify(err), err)
	}
	return staff, nil
}

// UpsertSalon writes a salon with its full catalog in one transaction.
func (r *CatalogRepository) UpsertSalon(ctx context.Context, salonID, name string, services []model.Service, staff []model.StaffMember) error {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("upsert salon: %w: %w", classify(err), err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO salons (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, salonID, name); err != nil {
		return fmt.Errorf("upsert salon: %w: %w", classify(err), err)
	}
	for i, s := range services {
		if _, err := tx.Exec(ctx, `
			INSERT INTO services (salon_id, id, name, category, duration_minutes, price_cents, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (salon_id, id) DO UPDATE
			SET name = EXCLUDED.name,
				category = EXCLUDED.category,
				duration_minutes = EXCLUDED.duration_minutes,
				price_cents = EXCLUDED.price_cents,
				sort_order = EXCLUDED.sort_order
		`, salonID, s.ID, s.Name, s.Category, s.DurationMinutes, s.PriceCents, i); err != nil {
			return fmt.Errorf("upsert service %s: %w: %w", s.ID, classify(err), err)
		}
	}
	for i, m := range staff {
		if _, err := tx.Exec(ctx, `
			INSERT INTO staff (salon_id, id, name, available, sort_order)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (salon_id, id) DO UPDATE
			SET name = EXCLUDED.name,
				available = EXCLUDED.available,
				sort_order = EXCLUDED.sort_order
		`, salonID, m.ID, m.Name, m.Available, i); err != nil {
			return fmt.Errorf("upsert staff %s: %w: %w", m.ID, classify(err), err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("upsert salon: %w: %w", classify(err), err)
	}
	return nil
}
