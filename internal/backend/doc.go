// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the typed RPC client for the inference backend.
//
// Each operation generates a correlation ID, registers a completion with
// the correlator, sends one envelope through the transport, and arms a
// per-operation timeout: short for control-plane calls (model listing,
// actions, settings, persistence), long for chat generation, whose latency
// is unbounded in practice. Streaming chat additionally carries a liveness
// watchdog that fires when no fragment at all has arrived within a bounded
// window, because early silence (backend absent, model not loaded) is a
// different condition from an eventually slow generation.
//
// All failures reach callers as *ClientError values so that "the peer
// answered with an error", "we never got an answer", and "the connection
// died underneath us" stay distinguishable.
package backend
