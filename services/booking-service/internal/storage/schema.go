package storage

import (
	"context"
	_ "embed"

	"github.com/md-rashed-zaman/salonbook/libs/db"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the booking tables when they are missing.
func EnsureSchema(ctx context.Context, conn db.Conn) error {
	_, err := conn.Exec(ctx, schemaSQL)
	return err
}
