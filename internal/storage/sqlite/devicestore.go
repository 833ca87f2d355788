// Package sqlite persists device records in a local SQLite file, for
// deployments without Firestore.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/dispatch"
)

const (
	dirPermissions    = 0750
	busyTimeoutMillis = 5000
	connectionTimeout = 5 * time.Second

	// Fixed width so lexical order matches time order.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

const schema = `
CREATE TABLE IF NOT EXISTS devices (
	entry_id        TEXT PRIMARY KEY,
	registration_id TEXT NOT NULL,
	device_name     TEXT NOT NULL DEFAULT '',
	production      INTEGER NOT NULL DEFAULT 0,
	service_id      TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_devices_registration_id ON devices(registration_id);
`

// DeviceStore implements dispatch.DeviceStore on a single SQLite table.
type DeviceStore struct {
	db *sql.DB
}

// Open creates the database file and its directory if needed, enables WAL,
// and applies the schema.
func Open(path string) (*DeviceStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL", path, busyTimeoutMillis)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DeviceStore{db: db}, nil
}

func (s *DeviceStore) Close() error {
	return s.db.Close()
}

func (s *DeviceStore) List(ctx context.Context) ([]device.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, registration_id, device_name, production, service_id, created_at, updated_at
		FROM devices ORDER BY created_at, entry_id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	records := make([]device.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return records, nil
}

func (s *DeviceStore) Get(ctx context.Context, entryID string) (device.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT entry_id, registration_id, device_name, production, service_id, created_at, updated_at
		FROM devices WHERE entry_id = ?`, entryID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return device.Record{}, dispatch.ErrNotFound
	}
	return rec, err
}

func (s *DeviceStore) Put(ctx context.Context, rec device.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (entry_id, registration_id, device_name, production, service_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entry_id) DO UPDATE SET
			registration_id = excluded.registration_id,
			device_name     = excluded.device_name,
			production      = excluded.production,
			service_id      = excluded.service_id,
			created_at      = excluded.created_at,
			updated_at      = excluded.updated_at`,
		rec.EntryID, rec.RegistrationID, rec.DeviceName, rec.Production, rec.ServiceID,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting device %s: %w", rec.EntryID, err)
	}
	return nil
}

func (s *DeviceStore) Delete(ctx context.Context, entryID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("deleting device %s: %w", entryID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (device.Record, error) {
	var (
		rec                  device.Record
		createdAt, updatedAt string
	)
	if err := row.Scan(&rec.EntryID, &rec.RegistrationID, &rec.DeviceName, &rec.Production,
		&rec.ServiceID, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return device.Record{}, err
		}
		return device.Record{}, fmt.Errorf("scanning device: %w", err)
	}

	var err error
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return device.Record{}, fmt.Errorf("parsing created_at of %s: %w", rec.EntryID, err)
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return device.Record{}, fmt.Errorf("parsing updated_at of %s: %w", rec.EntryID, err)
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
