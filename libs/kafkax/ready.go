package kafkax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const defaultDialTimeout = 2 * time.Second

// BrokerCheck reports ready as soon as one of brokers accepts a connection, so
// a single broker being down does not fail readiness for the whole cluster.
func BrokerCheck(brokers []string, timeout time.Duration) func(context.Context) error {
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("kafka brokers not configured")
		}
		dialer := kafka.Dialer{Timeout: timeout}
		var errs []error
		for _, addr := range brokers {
			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err == nil {
				_ = conn.Close()
				return nil
			}
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			if ctx.Err() != nil {
				break
			}
		}
		return errors.Join(errs...)
	}
}
