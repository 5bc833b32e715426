// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire defines the JSON envelope exchanged with the inference backend.
package wire

import "encoding/json"

// =============================================================================
// DECODE ERROR
// =============================================================================

// DecodeError reports a malformed frame. The receive loop logs these and
// drops the frame; the connection stays up.
type DecodeError struct {
	Message string
	Cause   error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// CODEC
// =============================================================================

// Encode serializes an envelope for transmission.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Decode parses one frame into an envelope. Frames that are not valid JSON
// or lack a type are rejected with *DecodeError.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, &DecodeError{Message: "malformed frame", Cause: err}
	}
	if env.Type == "" {
		return Envelope{}, &DecodeError{Message: "frame missing type"}
	}
	return env, nil
}
