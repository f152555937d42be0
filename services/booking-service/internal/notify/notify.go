// Package notify hands notification and refund intents to downstream
// consumers. Dispatch never waits for delivery.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

const (
	EventBooked          = "appointment.booked"
	EventRefundRequested = "payment.refund_requested"
)

// Intent is the payload published for every customer-visible change.
type Intent struct {
	EventID           string                `json:"event_id"`
	EventType         string                `json:"event_type"`
	SalonID           string                `json:"salon_id"`
	AppointmentID     string                `json:"appointment_id"`
	AppointmentNumber string                `json:"appointment_number"`
	Status            model.Status          `json:"status"`
	Customer          model.CustomerSummary `json:"customer"`
	ServiceName       string                `json:"service_name"`
	PriceCents        int64                 `json:"price_cents"`
	StaffName         string                `json:"staff_name,omitempty"`
	Date              string                `json:"date"`
	StartTime         string                `json:"start_time"`
	EndTime           string                `json:"end_time"`
	PreviousDate      string                `json:"previous_date,omitempty"`
	PreviousStartTime string                `json:"previous_start_time,omitempty"`
	Reason            string                `json:"reason,omitempty"`
	NotifyEmail       bool                  `json:"notify_email"`
	NotifySMS         bool                  `json:"notify_sms"`
	ProcessRefund     bool                  `json:"process_refund"`
	OccurredAt        time.Time             `json:"occurred_at"`
}

func newIntent(eventType string, a model.Appointment, now time.Time) Intent {
	return Intent{
		EventID:           uuid.NewString(),
		EventType:         eventType,
		SalonID:           a.SalonID,
		AppointmentID:     a.ID,
		AppointmentNumber: a.Number,
		Status:            a.Status,
		Customer:          a.Customer,
		ServiceName:       a.Service.Name,
		PriceCents:        a.Service.PriceCents,
		StaffName:         a.StaffName,
		Date:              a.Date,
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		OccurredAt:        now.UTC(),
	}
}

// BookedIntent announces a new PENDING appointment to the customer by email.
func BookedIntent(a model.Appointment, now time.Time) Intent {
	in := newIntent(EventBooked, a, now)
	in.NotifyEmail = true
	return in
}

// TransitionIntent describes the outcome of a lifecycle transition.
func TransitionIntent(a model.Appointment, fx lifecycle.Effects, now time.Time) Intent {
	in := newIntent(string(fx.Event), a, now)
	in.NotifyEmail = fx.NotifyEmail
	in.NotifySMS = fx.NotifySMS
	in.ProcessRefund = fx.ProcessRefund
	in.Reason = fx.Reason
	in.PreviousDate = fx.PreviousDate
	in.PreviousStartTime = fx.PreviousStartTime
	return in
}

type Dispatcher interface {
	Dispatch(ctx context.Context, in Intent) error
}

// LogDispatcher records intents in the service log. It stands in for Kafka in
// local runs.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d LogDispatcher) Dispatch(ctx context.Context, in Intent) error {
	if d.Logger == nil {
		return nil
	}
	d.Logger.InfoContext(ctx, "notification intent",
		"event_type", in.EventType,
		"event_id", in.EventID,
		"appointment_id", in.AppointmentID,
		"notify_email", in.NotifyEmail,
		"notify_sms", in.NotifySMS,
		"process_refund", in.ProcessRefund,
	)
	return nil
}

// MessageWriter is the part of *kafka.Writer the dispatcher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaDispatcher publishes each intent to the topic named by its event type,
// keyed by appointment id. Refund requests also go to EventRefundRequested.
type KafkaDispatcher struct {
	writer MessageWriter
	logger *slog.Logger
}

func NewKafkaDispatcher(w MessageWriter, logger *slog.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{writer: w, logger: logger}
}

// NewKafkaWriter builds an async writer. Delivery failures are only logged.
func NewKafkaWriter(brokers []string, logger *slog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err == nil || logger == nil {
				return
			}
			for _, m := range messages {
				logger.Error("notification delivery failed",
					"topic", m.Topic,
					"event_id", kafkax.HeaderValue(m.Headers, kafkax.HeaderEventID),
					"err", err,
				)
			}
		},
	}
}

func (d *KafkaDispatcher) message(ctx context.Context, topic string, in Intent, payload []byte) kafka.Message {
	meta := kafkax.EventMeta{EventID: in.EventID, EventType: topic, SalonID: in.SalonID, AppointmentID: in.AppointmentID}
	return kafka.Message{
		Topic:   topic,
		Key:     []byte(in.AppointmentID),
		Value:   payload,
		Headers: kafkax.InjectTraceHeaders(ctx, meta.Headers()),
	}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, in Intent) error {
	if in.EventType == "" {
		return fmt.Errorf("notify: intent without event type: %w", model.ErrInvalidRequest)
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("notify: marshal intent: %w", err)
	}
	msgs := []kafka.Message{d.message(ctx, in.EventType, in, payload)}
	if in.ProcessRefund {
		msgs = append(msgs, d.message(ctx, EventRefundRequested, in, payload))
	}
	if err := d.writer.WriteMessages(ctx, msgs...); err != nil {
		if d.logger != nil {
			d.logger.WarnContext(ctx, "notification dispatch failed", "event_type", in.EventType, "err", err)
		}
		return fmt.Errorf("notify: write %s: %w: %w", in.EventType, model.ErrNetworkError, err)
	}
	return nil
}
