// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the typed RPC client for the inference backend.
package backend

import "errors"

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents a failed backend operation.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is makes sentinel comparison work across separately constructed values.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// ErrorType categorizes operation failures for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotConnected
	ErrTypeTimeout
	ErrTypeWatchdog
	ErrTypeCanceled
	ErrTypeTransportLost
	ErrTypePeer
)

// Sentinel errors for easy checking.
var (
	ErrTimeout      = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrStreamSilent = &ClientError{Type: ErrTypeWatchdog, Message: "no data received from backend"}
	ErrCanceled     = &ClientError{Type: ErrTypeCanceled, Message: "request canceled"}
)

// NewPeerError wraps an error string the backend reported in a payload.
// The message is surfaced verbatim to callers.
func NewPeerError(message string) *ClientError {
	return &ClientError{Type: ErrTypePeer, Message: message}
}

// NewTransportLostError wraps a connection-loss signal from the transport.
func NewTransportLostError(cause error) *ClientError {
	return &ClientError{Type: ErrTypeTransportLost, Message: "connection lost before reply", Cause: cause}
}

// IsTimeout checks if an error is an operation timeout.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return false
}

// IsStreamSilent checks if an error is the liveness watchdog firing.
func IsStreamSilent(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeWatchdog
	}
	return false
}

// IsCanceled checks if an error is a caller-requested cancellation.
func IsCanceled(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeCanceled
	}
	return false
}

// IsTransportLost checks if an error means the connection died while the
// request was outstanding.
func IsTransportLost(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTransportLost
	}
	return false
}

// IsPeerError checks if an error was explicitly reported by the backend.
func IsPeerError(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypePeer
	}
	return false
}
