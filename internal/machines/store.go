package machines

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrStoreUnavailable = errors.New("state store unavailable")
	// ErrInvalidRecord means the backend refused the values themselves; the
	// store is healthy and retrying the same write fails again.
	ErrInvalidRecord = errors.New("record rejected by state store")
)

const (
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
	DriverMemory   = "memory"
)

// Store persists one Record per machine ID.
//
// Upsert must be atomic per key: concurrent upserts of the same machine leave
// exactly one of the writes visible, never a mix of fields. Upserts of
// different machines must not block each other. A cancelled context either
// prevents the write or the write is fully applied.
//
// ListAll returns every record ordered by machine ID. It need not be
// serializable with concurrent writers but never returns a partially written
// record.
type Store interface {
	Upsert(ctx context.Context, machineID, clientID string, runningPrograms []string, now time.Time) (Record, error)
	ListAll(ctx context.Context) ([]Record, error)
	Close() error
}

func unavailable(op string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
