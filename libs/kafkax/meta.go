package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventID       = "event_id"
	HeaderEventType     = "event_type"
	HeaderSalonID       = "salon_id"
	HeaderAppointmentID = "appointment_id"
)

// EventMeta is the metadata carried in the headers of booking event messages.
// Consumers can route on salon and appointment without decoding the payload.
type EventMeta struct {
	EventID       string
	EventType     string
	SalonID       string
	AppointmentID string
}

// Headers renders meta, skipping empty salon and appointment ids.
func (m EventMeta) Headers() []kafka.Header {
	headers := []kafka.Header{
		{Key: HeaderEventID, Value: []byte(m.EventID)},
		{Key: HeaderEventType, Value: []byte(m.EventType)},
	}
	if m.SalonID != "" {
		headers = append(headers, kafka.Header{Key: HeaderSalonID, Value: []byte(m.SalonID)})
	}
	if m.AppointmentID != "" {
		headers = append(headers, kafka.Header{Key: HeaderAppointmentID, Value: []byte(m.AppointmentID)})
	}
	return headers
}

// ParseEventMeta reads meta back from msg. Messages keyed by appointment id
// (as booking-service writes them) fill AppointmentID from the key, and the
// topic stands in for a missing event type.
func ParseEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:       HeaderValue(msg.Headers, HeaderEventID),
		EventType:     HeaderValue(msg.Headers, HeaderEventType),
		SalonID:       HeaderValue(msg.Headers, HeaderSalonID),
		AppointmentID: HeaderValue(msg.Headers, HeaderAppointmentID),
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	if meta.AppointmentID == "" {
		meta.AppointmentID = string(msg.Key)
	}
	return meta
}

// HeaderValue returns the last value set for key, or "".
func HeaderValue(headers []kafka.Header, key string) string {
	for i := len(headers) - 1; i >= 0; i-- {
		if headers[i].Key == key {
			return string(headers[i].Value)
		}
	}
	return ""
}

// SplitBrokers parses a comma separated KAFKA_BROKERS value, dropping blanks
// and repeats.
func SplitBrokers(raw string) []string {
	var brokers []string
	seen := map[string]bool{}
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		brokers = append(brokers, b)
	}
	return brokers
}
