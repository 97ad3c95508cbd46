package reduce

import (
	"errors"
	"fmt"

	"github.com/roach88/histsync/internal/record"
)

// DecodeErrorKind categorizes decode failures.
type DecodeErrorKind string

const (
	// KindUnsupportedVersion indicates a record version with no decoder.
	KindUnsupportedVersion DecodeErrorKind = "UNSUPPORTED_VERSION"

	// KindCorruption indicates malformed payload bytes.
	KindCorruption DecodeErrorKind = "CORRUPTION"
)

// DecodeError reports a record that could not be decoded. Fold fills in the
// record's location so an operator can find it in the log.
type DecodeError struct {
	Kind    DecodeErrorKind
	Message string

	Tag     string
	Version string
	Host    record.HostID
	ID      record.RecordID
	Idx     uint64

	Err error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("%s: %s (tag=%s, version=%s, host=%s, id=%s, idx=%d)",
		e.Kind, e.Message, e.Tag, e.Version, e.Host, e.ID, e.Idx)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// UnsupportedVersion returns a decode error for an unknown version.
func UnsupportedVersion(version string) *DecodeError {
	return &DecodeError{
		Kind:    KindUnsupportedVersion,
		Message: fmt.Sprintf("unsupported record version %q", version),
		Version: version,
	}
}

// Corruption returns a decode error for malformed data.
func Corruption(message string, err error) *DecodeError {
	return &DecodeError{Kind: KindCorruption, Message: message, Err: err}
}

// IsUnsupportedVersion reports whether err is an unsupported-version error.
func IsUnsupportedVersion(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.Kind == KindUnsupportedVersion
}

// IsCorruption reports whether err is a corruption error.
func IsCorruption(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.Kind == KindCorruption
}

// annotate attaches r's location to err. Errors that are not DecodeErrors
// are treated as corruption.
func annotate(err error, r record.Record[record.DecryptedData]) error {
	var de *DecodeError
	if !errors.As(err, &de) {
		de = Corruption("decode failed", err)
	} else {
		cp := *de
		de = &cp
	}
	de.Tag = r.Tag
	de.Version = r.Version
	de.Host = r.Host
	de.ID = r.ID
	de.Idx = r.Idx
	return de
}
