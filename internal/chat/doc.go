// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the client-side conversation state.
//
// The Store owns every conversation the client knows about, tracks which
// one is active, and drives chat generations through the backend client.
// UI code observes the store through a notify callback and renders from
// snapshots; it never mutates conversations directly.
//
// While an assistant response is streaming the store refuses new sends,
// mirrors the accumulated text into the placeholder message on every
// update, and finalizes the message when the stream ends for any reason.
// Completed turns are persisted to the backend's history store as a side
// effect, never as a precondition of local progress.
package chat
