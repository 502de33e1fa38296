package scan

import (
	"errors"
	"fmt"
)

// Kind classifies why a chunk was rejected
type Kind int

const (
	// KindNone is reported for errors that are not scan errors
	KindNone Kind = iota
	// KindDecodeFailure means the decoder found no QR code in the image
	KindDecodeFailure
	// KindFormatInvalid means the data is too short or has a wrong magic tag
	KindFormatInvalid
	// KindChunkCorrupt means the payload does not match the chunk hash
	KindChunkCorrupt
	// KindFirstChunkTooShort means the first chunk cannot hold the message header
	KindFirstChunkTooShort
	// KindFirstChunkSequence means a session was about to start on a chunk other than the first one
	KindFirstChunkSequence
	// KindFirstChunkLengthInvalid means the header declares a negative or too large length
	KindFirstChunkLengthInvalid
	// KindGroupMismatch means the chunk belongs to another message
	KindGroupMismatch
	// KindOrderViolation means the chunk is not the next one expected
	KindOrderViolation
	// KindInactive means the session is complete or dead and needs a reset
	KindInactive
	// KindOverflow means the chunks carry more data than the header declares
	KindOverflow
	// KindUnderflow means the last chunk arrived before the data was complete
	KindUnderflow
	// KindFinalIntegrity means the assembled message does not match the group hash
	KindFinalIntegrity
)

var kindNames = map[Kind]string{
	KindNone:                    "none",
	KindDecodeFailure:           "decode failure",
	KindFormatInvalid:           "invalid format",
	KindChunkCorrupt:            "corrupt chunk",
	KindFirstChunkTooShort:      "first chunk too short",
	KindFirstChunkSequence:      "first chunk out of sequence",
	KindFirstChunkLengthInvalid: "invalid total length",
	KindGroupMismatch:           "different group",
	KindOrderViolation:          "wrong order",
	KindInactive:                "session inactive",
	KindOverflow:                "data is too much",
	KindUnderflow:               "data is not enough",
	KindFinalIntegrity:          "hash of whole data is wrong",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fatal reports whether the kind kills the session
func (k Kind) Fatal() bool {
	switch k {
	case KindOverflow, KindUnderflow, KindFinalIntegrity:
		return true
	}
	return false
}

// Error is returned for every rejected chunk
type Error struct {
	Kind Kind
	// Seq is the sequence number of the offending chunk, 0 when unknown
	Seq uint8
	// Message is the user facing diagnostic, empty when there is none
	Message string

	err error
}

func (e *Error) Error() string {
	s := "scan: " + e.Kind.String()
	if e.Seq != 0 {
		s = fmt.Sprintf("%s (chunk %d)", s, e.Seq)
	}
	if e.err != nil {
		s += ": " + e.err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is matches errors of the same kind, so errors.Is(err, ErrOverflow) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrDecodeFailure           = &Error{Kind: KindDecodeFailure}
	ErrFormatInvalid           = &Error{Kind: KindFormatInvalid}
	ErrChunkCorrupt            = &Error{Kind: KindChunkCorrupt}
	ErrFirstChunkTooShort      = &Error{Kind: KindFirstChunkTooShort}
	ErrFirstChunkSequence      = &Error{Kind: KindFirstChunkSequence}
	ErrFirstChunkLengthInvalid = &Error{Kind: KindFirstChunkLengthInvalid}
	ErrGroupMismatch           = &Error{Kind: KindGroupMismatch}
	ErrOrderViolation          = &Error{Kind: KindOrderViolation}
	ErrInactive                = &Error{Kind: KindInactive}
	ErrOverflow                = &Error{Kind: KindOverflow}
	ErrUnderflow               = &Error{Kind: KindUnderflow}
	ErrFinalIntegrity          = &Error{Kind: KindFinalIntegrity}
)

// KindOf returns the kind carried by err, KindNone if err is not a scan error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

// Messages is the catalog of user facing diagnostics.
// Order is a format string receiving the sequence number.
type Messages struct {
	Invalid   string
	Corrupt   string
	Different string
	Order     string
	Finished  string
}

// DefaultMessages are used unless WithMessages is given
var DefaultMessages = Messages{
	Invalid:   "This is not a valid code.",
	Corrupt:   "The code is corrupted.",
	Different: "This code belongs to different data.",
	Order:     "Wrong code number: %d.",
	Finished:  "Scanning has finished. Reset to scan new data.",
}

// message maps a kind to its diagnostic, fatal kinds and decode failures have none
func (m *Messages) message(k Kind, seq uint8) string {
	switch k {
	case KindFormatInvalid:
		return m.Invalid
	case KindChunkCorrupt, KindFirstChunkTooShort, KindFirstChunkLengthInvalid:
		return m.Corrupt
	case KindGroupMismatch:
		return m.Different
	case KindFirstChunkSequence, KindOrderViolation:
		return fmt.Sprintf(m.Order, seq)
	case KindInactive:
		return m.Finished
	}
	return ""
}
