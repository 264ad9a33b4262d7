package machines

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const upsertMachineSQL = `
INSERT INTO machine_status (machine_id, client_id, running_programs, last_seen)
VALUES ($1, $2, $3, $4)
ON CONFLICT (machine_id) DO UPDATE SET
	client_id = EXCLUDED.client_id,
	running_programs = EXCLUDED.running_programs,
	last_seen = EXCLUDED.last_seen
RETURNING machine_id, client_id, running_programs, last_seen`

const listMachinesSQL = `
SELECT machine_id, client_id, running_programs, last_seen
FROM machine_status
ORDER BY machine_id`

// machineRow mirrors the machine_status table. last_seen is nullable for rows
// written by other tools.
type machineRow struct {
	MachineID       string     `db:"machine_id"`
	ClientID        string     `db:"client_id"`
	RunningPrograms []byte     `db:"running_programs"`
	LastSeen        *time.Time `db:"last_seen"`
}

func (r machineRow) toRecord() (Record, error) {
	rec := Record{
		MachineID: r.MachineID,
		ClientID:  r.ClientID,
	}
	if len(r.RunningPrograms) > 0 {
		if err := json.Unmarshal(r.RunningPrograms, &rec.RunningPrograms); err != nil {
			return Record{}, fmt.Errorf("decode running_programs for machine %q: %w", r.MachineID, err)
		}
	}
	if rec.RunningPrograms == nil {
		rec.RunningPrograms = []string{}
	}
	if r.LastSeen != nil {
		rec.LastSeen = r.LastSeen.UTC()
	}
	return rec, nil
}

// PostgresStore keeps records in the machine_status table. The upsert is a
// single INSERT ... ON CONFLICT statement, so Postgres row locking serializes
// writers of the same machine and the statement applies completely or not at
// all.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Upsert(ctx context.Context, machineID, clientID string, runningPrograms []string, now time.Time) (Record, error) {
	programs, err := json.Marshal(cloneStrings(runningPrograms))
	if err != nil {
		return Record{}, fmt.Errorf("encode running_programs: %w", err)
	}

	var row machineRow
	if err := pgxscan.Get(ctx, s.pool, &row, upsertMachineSQL, machineID, clientID, programs, now); err != nil {
		return Record{}, classify("upsert machine", err)
	}

	return row.toRecord()
}

// dataExceptionClass is SQLSTATE class 22: the statement was refused because
// of the values it carried (bad encoding, value too long, invalid JSON).
const dataExceptionClass = "22"

// classify separates data exceptions, which are the caller's fault, from
// failures of the database itself.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, dataExceptionClass) {
		return fmt.Errorf("%s: %w: %s (SQLSTATE %s)", op, ErrInvalidRecord, pgErr.Message, pgErr.Code)
	}
	return unavailable(op, err)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]Record, error) {
	var rows []machineRow
	if err := pgxscan.Select(ctx, s.pool, &rows, listMachinesSQL); err != nil {
		return nil, unavailable("list machines", err)
	}

	result := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller that opened it.
func (s *PostgresStore) Close() error {
	return nil
}
