package machines

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "machine:"

type BadgerConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

// BadgerStore keeps records in an embedded Badger database, one JSON value
// per key "machine:<id>". Each upsert is a single read-write transaction.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger path is required")
		}
		opts = badger.DefaultOptions(filepath.Clean(cfg.Path))
		opts = opts.WithValueLogFileSize(1 << 26)
	}
	opts.Logger = badgerLogger{}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("unable to open badger store: %w", err)
	}

	slog.Info("Opened badger store", "path", cfg.Path, "in_memory", cfg.InMemory)
	return &BadgerStore{db: db}, nil
}

func badgerKey(machineID string) []byte {
	return []byte(badgerKeyPrefix + machineID)
}

func (s *BadgerStore) Upsert(ctx context.Context, machineID, clientID string, runningPrograms []string, now time.Time) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, unavailable("upsert machine", err)
	}

	rec := Record{
		MachineID:       machineID,
		ClientID:        clientID,
		RunningPrograms: cloneStrings(runningPrograms),
		LastSeen:        now,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("encode machine %q: %w", machineID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(machineID), data)
	})
	if err != nil {
		return Record{}, unavailable("upsert machine", err)
	}

	return rec.clone(), nil
}

func (s *BadgerStore) ListAll(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list machines", err)
	}

	var result []Record
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(badgerKeyPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var rec Record
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			result = append(result, rec.clone())
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("list machines", err)
	}

	sortByMachineID(result)
	if result == nil {
		result = []Record{}
	}
	return result, nil
}

func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return unavailable("ping", badger.ErrDBClosed)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's internal logging through slog. Info and debug
// output is demoted to debug; badger is chatty at info level.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	slog.Error("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	slog.Warn("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	slog.Debug("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	slog.Debug("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}
