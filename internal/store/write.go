package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/histsync/internal/record"
)

// Push appends a sealed record to its stream.
//
// The head check and the insert run in one immediate transaction, so two
// producers racing on the same stream cannot both succeed: the loser gets
// ErrConflict. A unique-constraint failure on insert is reported the same way.
// A record whose id is already stored is accepted as a no-op, which makes
// re-delivery during sync safe.
func (s *SQLiteStore) Push(ctx context.Context, r record.Record[record.EncryptedData]) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("push: begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE id = ?`, r.ID.String(),
	).Scan(&exists); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if exists > 0 {
		return nil
	}

	head, err := lastRecord(ctx, tx, r.Host, r.Tag)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if err := checkAppend(head, r); err != nil {
		return err
	}

	var parent sql.NullString
	if r.Parent != nil {
		parent = sql.NullString{String: r.Parent.String(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (id, host, tag, idx, parent, timestamp, version, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID.String(),
		r.Host.String(),
		r.Tag,
		int64(r.Idx),
		parent,
		r.Timestamp,
		r.Version,
		[]byte(r.Data),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: host=%s tag=%s idx=%d, written concurrently: %v",
				ErrConflict, r.Host, r.Tag, r.Idx, err)
		}
		return fmt.Errorf("push: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("push: commit: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate id or
// (host, tag, idx). Another connection got there first.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// checkAppend verifies that r directly follows head in its stream.
func checkAppend[T record.Payload](head *record.Meta, r record.Record[T]) error {
	if head == nil {
		if r.Idx != 0 || r.Parent != nil {
			return fmt.Errorf("%w: host=%s tag=%s idx=%d, stream is empty",
				ErrConflict, r.Host, r.Tag, r.Idx)
		}
		return nil
	}

	if r.Idx != head.Idx+1 {
		return fmt.Errorf("%w: host=%s tag=%s idx=%d, head idx=%d",
			ErrConflict, r.Host, r.Tag, r.Idx, head.Idx)
	}
	if r.Parent == nil || *r.Parent != head.ID {
		return fmt.Errorf("%w: host=%s tag=%s idx=%d, parent does not match head %s",
			ErrConflict, r.Host, r.Tag, r.Idx, head.ID)
	}
	return nil
}
