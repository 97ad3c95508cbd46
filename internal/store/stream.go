package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/histsync/internal/encryption"
	"github.com/roach88/histsync/internal/record"
)

// Stream writes this host's records for one tag and reads the tag's full
// history back, sealing and opening payloads with Key.
type Stream struct {
	Store Store
	Key   encryption.Key
	Host  record.HostID
	Tag   string

	// Clock defaults to the system clock.
	Clock record.Clock

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithClock sets the clock used for record timestamps.
func WithClock(c record.Clock) StreamOption {
	return func(s *Stream) { s.Clock = c }
}

// WithLogger sets the logger for append and load events.
func WithLogger(l *slog.Logger) StreamOption {
	return func(s *Stream) { s.Logger = l }
}

// NewStream returns the stream of (host, tag) in st.
func NewStream(st Store, key encryption.Key, host record.HostID, tag string, opts ...StreamOption) Stream {
	s := Stream{Store: st, Key: key, Host: host, Tag: tag}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s Stream) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

// Append seals data as the next record of (Host, Tag) and pushes it.
// If another producer moved the head in between, the head is reloaded and
// the push retried once.
func (s Stream) Append(ctx context.Context, version string, data record.DecryptedData) (record.Record[record.EncryptedData], error) {
	b := record.Builder{Host: s.Host, Tag: s.Tag, Version: version, Clock: s.Clock}

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var head *record.Meta
		head, err = s.Store.Last(ctx, s.Host, s.Tag)
		if err != nil {
			return record.Record[record.EncryptedData]{}, err
		}

		var sealed record.Record[record.EncryptedData]
		sealed, err = record.Encrypt(b.Next(head, data), s.Key)
		if err != nil {
			return record.Record[record.EncryptedData]{}, err
		}

		err = s.Store.Push(ctx, sealed)
		if err == nil {
			s.logger().Debug("record appended",
				"tag", s.Tag,
				"host", s.Host.String(),
				"idx", sealed.Idx,
				"id", sealed.ID.String(),
			)
			return sealed, nil
		}
		if !errors.Is(err, ErrConflict) {
			return record.Record[record.EncryptedData]{}, err
		}
		s.logger().Warn("stream head moved, retrying append", "tag", s.Tag, "error", err)
	}
	return record.Record[record.EncryptedData]{}, fmt.Errorf("append to %s: %w", s.Tag, err)
}

// Load returns every record of Tag, from all hosts, decrypted, in log order.
// It stops at the first record that cannot be decrypted.
func (s Stream) Load(ctx context.Context) ([]record.Record[record.DecryptedData], error) {
	sealed, err := s.Store.AllTagged(ctx, s.Tag)
	if err != nil {
		return nil, err
	}

	out := make([]record.Record[record.DecryptedData], 0, len(sealed))
	for _, r := range sealed {
		d, err := record.Decrypt(r, s.Key)
		if err != nil {
			attrs := []any{
				"tag", r.Tag,
				"host", r.Host.String(),
				"id", r.ID.String(),
				"idx", r.Idx,
				"version", r.Version,
				"error", err,
			}
			if encryption.IsSecurityRelevant(err) {
				s.logger().Error("record failed authentication", attrs...)
			} else {
				s.logger().Warn("record could not be decrypted", attrs...)
			}
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
