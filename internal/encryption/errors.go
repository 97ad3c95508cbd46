package encryption

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes encryption errors.
type ErrorKind string

const (
	// KindFormat indicates a bad header prefix or malformed token structure.
	KindFormat ErrorKind = "FORMAT"

	// KindEncoding indicates invalid UTF-8 or base64 content.
	KindEncoding ErrorKind = "ENCODING"

	// KindDecode indicates a wrapped key whose base64 body cannot be decoded.
	KindDecode ErrorKind = "DECODE"

	// KindTruncated indicates a wrapped key too short to hold tag and nonce.
	KindTruncated ErrorKind = "TRUNCATED"

	// KindAuthentication indicates the wrapped key tag did not verify.
	KindAuthentication ErrorKind = "AUTHENTICATION"

	// KindKeyMismatch indicates the token was sealed for a different wrapping key.
	KindKeyMismatch ErrorKind = "KEY_MISMATCH"

	// KindDecryption indicates the token MAC did not verify.
	KindDecryption ErrorKind = "DECRYPTION"
)

// Error is returned by every fallible operation in this package.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Message is a human-readable description.
	Message string

	// CurrentKID and RequiredKID are set for KindKeyMismatch.
	CurrentKID  string
	RequiredKID string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
// Uses errors.As to handle wrapped errors.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsSecurityRelevant reports whether err means corrupted or tampered data
// rather than a merely unreadable token.
func IsSecurityRelevant(err error) bool {
	return IsKind(err, KindAuthentication) || IsKind(err, KindDecryption)
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func newKeyMismatchError(current, required string) *Error {
	return &Error{
		Kind: KindKeyMismatch,
		Message: fmt.Sprintf(
			"attempting to decrypt with incorrect key: currently using %s, expecting %s",
			current, required,
		),
		CurrentKID:  current,
		RequiredKID: required,
	}
}
