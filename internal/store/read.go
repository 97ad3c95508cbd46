package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/histsync/internal/record"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const recordColumns = `id, host, tag, idx, parent, timestamp, version, data`

// Last returns the head of (host, tag), or nil if the stream is empty.
func (s *SQLiteStore) Last(ctx context.Context, host record.HostID, tag string) (*record.Meta, error) {
	head, err := lastRecord(ctx, s.db, host, tag)
	if err != nil {
		return nil, fmt.Errorf("last: %w", err)
	}
	return head, nil
}

func lastRecord(ctx context.Context, q querier, host record.HostID, tag string) (*record.Meta, error) {
	var (
		id  string
		idx int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, idx FROM records
		WHERE host = ? AND tag = ?
		ORDER BY idx DESC
		LIMIT 1
	`, host.String(), tag).Scan(&id, &idx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rid, err := record.ParseRecordID(id)
	if err != nil {
		return nil, fmt.Errorf("parse record id %q: %w", id, err)
	}
	return &record.Meta{ID: rid, Host: host, Tag: tag, Idx: uint64(idx)}, nil
}

// AllTagged returns every record with tag, across hosts, in log order.
// Returns an empty slice (not nil) if the tag has no records.
func (s *SQLiteStore) AllTagged(ctx context.Context, tag string) ([]record.Record[record.EncryptedData], error) {
	records, err := s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM records
		WHERE tag = ?
		ORDER BY seq ASC
	`, tag)
	if err != nil {
		return nil, fmt.Errorf("all tagged %q: %w", tag, err)
	}
	return records, nil
}

// Get returns the record with id, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id record.RecordID) (record.Record[record.EncryptedData], error) {
	records, err := s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM records WHERE id = ?
	`, id.String())
	if err != nil {
		return record.Record[record.EncryptedData]{}, fmt.Errorf("get %s: %w", id, err)
	}
	if len(records) == 0 {
		return record.Record[record.EncryptedData]{}, ErrNotFound
	}
	return records[0], nil
}

// Range returns up to limit records of (host, tag) with idx >= start.
func (s *SQLiteStore) Range(ctx context.Context, host record.HostID, tag string, start uint64, limit int) ([]record.Record[record.EncryptedData], error) {
	if limit <= 0 {
		return []record.Record[record.EncryptedData]{}, nil
	}
	records, err := s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM records
		WHERE host = ? AND tag = ? AND idx >= ?
		ORDER BY idx ASC
		LIMIT ?
	`, host.String(), tag, int64(start), limit)
	if err != nil {
		return nil, fmt.Errorf("range: %w", err)
	}
	return records, nil
}

// Status returns the head idx of every stream.
func (s *SQLiteStore) Status(ctx context.Context) (*record.Status, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT host, tag, MAX(idx) FROM records GROUP BY host, tag
	`)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	defer rows.Close()

	status := record.NewStatus()
	for rows.Next() {
		var (
			host, tag string
			idx       int64
		)
		if err := rows.Scan(&host, &tag, &idx); err != nil {
			return nil, fmt.Errorf("status: scan: %w", err)
		}
		h, err := record.ParseHostID(host)
		if err != nil {
			return nil, fmt.Errorf("status: parse host %q: %w", host, err)
		}
		status.Set(h, tag, uint64(idx))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("status: iterate: %w", err)
	}
	return status, nil
}

func (s *SQLiteStore) queryRecords(ctx context.Context, query string, args ...any) ([]record.Record[record.EncryptedData], error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []record.Record[record.EncryptedData]{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// scanRecord scans a row selected with recordColumns.
func scanRecord(rows *sql.Rows) (record.Record[record.EncryptedData], error) {
	var (
		r        record.Record[record.EncryptedData]
		id, host string
		idx      int64
		parent   sql.NullString
		data     []byte
	)
	if err := rows.Scan(&id, &host, &r.Tag, &idx, &parent, &r.Timestamp, &r.Version, &data); err != nil {
		return r, fmt.Errorf("scan record: %w", err)
	}

	var err error
	if r.ID, err = record.ParseRecordID(id); err != nil {
		return r, fmt.Errorf("scan record: id %q: %w", id, err)
	}
	if r.Host, err = record.ParseHostID(host); err != nil {
		return r, fmt.Errorf("scan record %s: host %q: %w", id, host, err)
	}
	if parent.Valid {
		p, err := record.ParseRecordID(parent.String)
		if err != nil {
			return r, fmt.Errorf("scan record %s: parent %q: %w", id, parent.String, err)
		}
		r.Parent = &p
	}
	r.Idx = uint64(idx)
	r.Data = record.EncryptedData(data)
	return r, nil
}
