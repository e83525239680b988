// Package coerrors provides the tagged error model shared by every layer of
// the bridge: a Kind classifying the failure plus an operation chain, in the
// spirit of the plain fmt.Errorf("op: %w", err) chaining used throughout the
// teacher's serial/socketcan packages, generalized so callers can match on
// Kind the way gocanopen's ODR/SDOAbortCode enums are matched.
package coerrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of where in the call chain it
// originated. Names follow spec.md §7 verbatim.
type Kind string

const (
	KindBadStart    Kind = "bad_start"
	KindBadHeader   Kind = "bad_header"
	KindBadEnd      Kind = "bad_end"
	KindBadType     Kind = "bad_type"
	KindBadFrame    Kind = "bad_frame_type"
	KindBadFormat   Kind = "bad_format"
	KindBadLength   Kind = "bad_length"
	KindBadDLC      Kind = "bad_dlc"
	KindBadID       Kind = "bad_id"
	KindBadFilter   Kind = "bad_filter"
	KindBadMask     Kind = "bad_mask"
	KindBadChecksum Kind = "bad_checksum"
	KindBadCanMode  Kind = "bad_can_mode"
	KindBadCanBaud  Kind = "bad_can_baud"
	KindBadRTX      Kind = "bad_rtx"

	KindDeviceNotFound    Kind = "device_not_found"
	KindDeviceNotOpen     Kind = "device_not_open"
	KindDeviceAlreadyOpen Kind = "device_already_open"
	KindDeviceReadError   Kind = "device_read_error"
	KindDeviceWriteError  Kind = "device_write_error"
	KindDeviceConfigError Kind = "device_config_error"
	KindTimeout           Kind = "timeout"
	KindSdoTimeout        Kind = "sdo_timeout"
	KindSdoAbort          Kind = "sdo_abort"
	KindCanSdoProtocol    Kind = "can_sdo_protocol"
	KindCanPdoError       Kind = "can_pdo_error"
	KindCanNmtError       Kind = "can_nmt_error"
	KindMissingField      Kind = "missing_field"
	KindUnknown           Kind = "unknown"
)

// Error is the chained, kind-tagged error used across the module. Op
// describes the operation that failed ("read_object", "validate_sdo_response",
// "deserialize_fixed_frame", ...); chaining several wrapped Errors produces
// the "op1 -> op2 -> Kind: message" trail required by spec.md §7.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	if _, chained := e.Err.(*Error); chained {
		return fmt.Sprintf("%s -> %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s -> %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a leaf error: no wrapped cause, just a kind and an operation.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Newf creates a leaf error carrying formatted context, still tagged by Kind.
func Newf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap chains op onto an existing error, preserving the innermost Kind so
// errors.Is / KindOf keep working through arbitrarily long chains.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: e.Kind, Op: op, Err: err}
	}
	return &Error{Kind: KindUnknown, Op: op, Err: err}
}

// KindOf extracts the Kind carried by err, or KindUnknown if err does not
// wrap a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// SdoAbortError carries the 32-bit abort code surfaced by an SDO server, per
// spec.md §4.7 / §7.
type SdoAbortError struct {
	Code uint32
}

func (e *SdoAbortError) Error() string {
	return fmt.Sprintf("sdo abort: code 0x%08X", e.Code)
}

// NewSdoAbort wraps an SdoAbortError as a tagged *Error so it composes with
// the rest of the chain.
func NewSdoAbort(op string, code uint32) *Error {
	return &Error{Kind: KindSdoAbort, Op: op, Err: &SdoAbortError{Code: code}}
}
