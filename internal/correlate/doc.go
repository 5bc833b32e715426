// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package correlate matches inbound envelopes to the requests that
// originated them.
//
// Every outstanding request is one entry in a table keyed by correlation
// ID. Single-shot requests are torn down by their first matching reply;
// streaming requests stay registered until a terminal marker (done:true
// or an error field) arrives. When the connection drops, FailAll delivers
// exactly one failure to every pending consumer and clears the table.
//
// The correlator never reorders: envelopes for one correlation ID reach
// the consumer in arrival order. Envelopes with no matching registration
// are logged and dropped.
package correlate
