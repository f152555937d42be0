package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/clock"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// AppointmentRepository persists appointments in Postgres. Overlapping active
// appointments for one staff member are rejected by the
// appointments_active_overlap exclusion constraint.
type AppointmentRepository struct {
	conn db.Conn
}

func NewAppointmentRepository(conn db.Conn) *AppointmentRepository {
	return &AppointmentRepository{conn: conn}
}

const appointmentColumns = `id::text, number, salon_id, staff_id, staff_name,
	customer_name, customer_phone, customer_email,
	service_id, service_name, price_cents, duration_minutes,
	to_char(appt_date, 'YYYY-MM-DD'), start_minutes, end_minutes, status,
	notes, special_requests, cancellation_reason, booked_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var (
		a          model.Appointment
		start, end int
		status     string
	)
	err := row.Scan(
		&a.ID,
		&a.Number,
		&a.SalonID,
		&a.StaffID,
		&a.StaffName,
		&a.Customer.Name,
		&a.Customer.Phone,
		&a.Customer.Email,
		&a.Service.ID,
		&a.Service.Name,
		&a.Service.PriceCents,
		&a.Service.DurationMinutes,
		&a.Date,
		&start,
		&end,
		&status,
		&a.Notes,
		&a.SpecialRequests,
		&a.CancelReason,
		&a.BookedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.StartTime = clock.ToLabel(start)
	a.EndTime = clock.ToLabel(end)
	a.Status = model.Status(status)
	return a, nil
}

func slotMinutes(a model.Appointment) (int, int, error) {
	start, err := clock.ToMinutes(a.StartTime)
	if err != nil {
		return 0, 0, fmt.Errorf("start time: %w: %w", model.ErrInvalidRequest, err)
	}
	end, err := clock.ToMinutes(a.EndTime)
	if err != nil {
		return 0, 0, fmt.Errorf("end time: %w: %w", model.ErrInvalidRequest, err)
	}
	if end <= start {
		// Runs past midnight; the span stays on its booking date.
		end += clock.MinutesPerDay
	}
	return start, end, nil
}

// classify maps a driver error onto the booking error kinds.
func classify(err error) error {
	switch {
	case db.IsSlotTaken(err):
		return model.ErrSlotConflict
	case db.IsNotFound(err):
		return model.ErrNotFound
	case db.IsConnectionError(err):
		return model.ErrNetworkError
	default:
		return model.ErrServerError
	}
}

// Create inserts a PENDING appointment and returns it with its number. When
// idempotencyKey is set and was already used for the salon, the earlier
// appointment is returned with replayed true.
func (r *AppointmentRepository) Create(ctx context.Context, a model.Appointment, idempotencyKey string) (model.Appointment, bool, error) {
	start, end, err := slotMinutes(a)
	if err != nil {
		return model.Appointment{}, false, err
	}

	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return model.Appointment{}, false, fmt.Errorf("create appointment: %w: %w", classify(err), err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if idempotencyKey != "" {
		existingID, err := lockIdempotencyKey(ctx, tx, a.SalonID, idempotencyKey)
		if err != nil {
			return model.Appointment{}, false, fmt.Errorf("idempotency key: %w: %w", classify(err), err)
		}
		if existingID != "" {
			prior, err := scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentColumns+`
				FROM appointments WHERE id = $1`, existingID))
			if err != nil {
				return model.Appointment{}, false, fmt.Errorf("replay appointment %s: %w: %w", existingID, classify(err), err)
			}
			if err := tx.Commit(ctx); err != nil {
				return model.Appointment{}, false, fmt.Errorf("replay appointment: %w: %w", classify(err), err)
			}
			return prior, true, nil
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, salon_id, staff_id, staff_name, customer_name, customer_phone, customer_email,
			 service_id, service_name, price_cents, duration_minutes,
			 appt_date, start_minutes, end_minutes, status, notes, special_requests)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::date, $13, $14, $15, $16, $17)
		RETURNING number, booked_at, updated_at
	`, a.ID, a.SalonID, a.StaffID, a.StaffName, a.Customer.Name, a.Customer.Phone, a.Customer.Email,
		a.Service.ID, a.Service.Name, a.Service.PriceCents, a.Service.DurationMinutes,
		a.Date, start, end, string(a.Status), a.Notes, a.SpecialRequests,
	).Scan(&a.Number, &a.BookedAt, &a.UpdatedAt)
	if err != nil {
		return model.Appointment{}, false, fmt.Errorf("create appointment: %w: %w", classify(err), err)
	}

	if idempotencyKey != "" {
		if _, err := tx.Exec(ctx, `
			UPDATE booking_idempotency_keys
			SET appointment_id = $3, updated_at = now()
			WHERE salon_id = $1 AND idempotency_key = $2
		`, a.SalonID, idempotencyKey, a.ID); err != nil {
			return model.Appointment{}, false, fmt.Errorf("idempotency key: %w: %w", classify(err), err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, false, fmt.Errorf("create appointment: %w: %w", classify(err), err)
	}
	return a, false, nil
}

// lockIdempotencyKey claims key for the salon inside tx and returns the
// appointment id already recorded for it, if any.
func lockIdempotencyKey(ctx context.Context, tx pgx.Tx, salonID, key string) (string, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (salon_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (salon_id, idempotency_key) DO NOTHING
	`, salonID, key); err != nil {
		return "", err
	}
	var appointmentID string
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(appointment_id::text, '')
		FROM booking_idempotency_keys
		WHERE salon_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, salonID, key).Scan(&appointmentID)
	return appointmentID, err
}

func (r *AppointmentRepository) Get(ctx context.Context, salonID, id string) (model.Appointment, error) {
	a, err := scanAppointment(r.conn.QueryRow(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id::text = $1 AND salon_id = $2
	`, id, salonID))
	if err != nil {
		return model.Appointment{}, fmt.Errorf("get appointment %s: %w: %w", id, classify(err), err)
	}
	return a, nil
}

// Save writes the mutable fields of a. Every failure wraps model.ErrPersistence.
func (r *AppointmentRepository) Save(ctx context.Context, a model.Appointment) error {
	start, end, err := slotMinutes(a)
	if err != nil {
		return fmt.Errorf("save appointment %s: %w: %w", a.ID, model.ErrPersistence, err)
	}
	tag, err := r.conn.Exec(ctx, `
		UPDATE appointments
		SET appt_date = $3::date,
			start_minutes = $4,
			end_minutes = $5,
			status = $6,
			notes = $7,
			cancellation_reason = $8,
			updated_at = $9
		WHERE id::text = $1 AND salon_id = $2
	`, a.ID, a.SalonID, a.Date, start, end, string(a.Status), a.Notes, a.CancelReason, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save appointment %s: %w: %w: %w", a.ID, model.ErrPersistence, classify(err), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save appointment %s: %w: %w", a.ID, model.ErrPersistence, model.ErrNotFound)
	}
	return nil
}

// List returns the salon's appointments ordered by date and start time.
func (r *AppointmentRepository) List(ctx context.Context, salonID string) ([]model.Appointment, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE salon_id = $1
		ORDER BY appt_date ASC, start_minutes ASC, number ASC
	`, salonID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w: %w", classify(err), err)
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w: %w", model.ErrServerError, err)
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list appointments: %w: %w", classify(err), err)
	}
	return appts, nil
}

// ListBookedSlots returns the [start, end) spans held by active appointments.
// An empty staffID or model.AnyStaff covers every staff member.
func (r *AppointmentRepository) ListBookedSlots(ctx context.Context, salonID, date, staffID string) ([]model.BookedSpan, error) {
	query := `
		SELECT id::text, start_minutes, end_minutes
		FROM appointments
		WHERE salon_id = $1
			AND appt_date = $2::date
			AND status IN ('PENDING', 'CONFIRMED')`
	args := []any{salonID, date}
	if staffID != "" && staffID != model.AnyStaff {
		query += ` AND staff_id = $3`
		args = append(args, staffID)
	}
	query += ` ORDER BY start_minutes ASC`

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("booked slots: %w: %w", classify(err), err)
	}
	defer rows.Close()

	var spans []model.BookedSpan
	for rows.Next() {
		var sp model.BookedSpan
		if err := rows.Scan(&sp.AppointmentID, &sp.Start, &sp.End); err != nil {
			return nil, fmt.Errorf("scan booked slot: %w: %w", model.ErrServerError, err)
		}
		spans = append(spans, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booked slots: %w: %w", classify(err), err)
	}
	return spans, nil
}
