package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/histsync/internal/record"
)

const metaHostID = "host_id"

// HostID returns this database's host id. The id is generated and stored on
// first use and cached for the lifetime of the store.
func (s *SQLiteStore) HostID(ctx context.Context) (record.HostID, error) {
	s.hostMu.Lock()
	defer s.hostMu.Unlock()

	if s.host != nil {
		return *s.host, nil
	}

	value, ok, err := s.getMeta(ctx, metaHostID)
	if err != nil {
		return record.HostID{}, fmt.Errorf("host id: %w", err)
	}

	var host record.HostID
	if ok {
		host, err = record.ParseHostID(value)
		if err != nil {
			return record.HostID{}, fmt.Errorf("host id: stored value %q: %w", value, err)
		}
	} else {
		host = record.NewHostID()
		if err := s.setMeta(ctx, metaHostID, host.String()); err != nil {
			return record.HostID{}, fmt.Errorf("host id: %w", err)
		}
	}

	s.host = &host
	return host, nil
}

func (s *SQLiteStore) getMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}
