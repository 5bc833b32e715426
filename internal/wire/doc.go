// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire defines the JSON envelope exchanged with the inference
// backend and the codec that reads and writes it.
//
// An envelope is one discrete unit on the socket:
//
//	{"type": "chat", "data": {...}, "requestId": "..."}
//
// The codec performs no schema validation beyond well-formed JSON and a
// non-empty type; matching replies to requests is the correlator's job.
// Decode failures are reported as *DecodeError and must never tear down
// the connection.
package wire
