// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport owns the persistent WebSocket to the inference backend.
//
// One Transport holds at most one connection. Inbound frames are decoded
// and handed to the correlator; outbound envelopes go through Send, which
// fails fast when the connection is not open rather than queueing. When
// the connection drops without the owner asking for it, every pending
// request is failed and reconnection is scheduled with linear backoff
// (base delay times the consecutive-failure count) up to a hard attempt
// ceiling, after which the transport reports a terminal disconnect.
//
// The backend process is locally supervised: it either comes back quickly
// or it is gone for good, which is why the backoff is linear with a low
// ceiling rather than exponential.
package transport
