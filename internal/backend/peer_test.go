// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the typed RPC client for the inference backend.
package backend

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/parley-chat/parley/internal/correlate"
	"github.com/parley-chat/parley/internal/transport"
	"github.com/parley-chat/parley/internal/wire"
)

// fakePeer is an in-process WebSocket server standing in for the backend.
// The handle function runs per received envelope on the connection's
// reader goroutine.
type fakePeer struct {
	srv    *httptest.Server
	handle func(ws *websocket.Conn, env wire.Envelope)

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newFakePeer(handle func(ws *websocket.Conn, env wire.Envelope)) *fakePeer {
	p := &fakePeer{handle: handle}
	handler := websocket.Handler(func(ws *websocket.Conn) {
		p.mu.Lock()
		p.conns = append(p.conns, ws)
		p.mu.Unlock()

		for {
			var frame []byte
			if err := websocket.Message.Receive(ws, &frame); err != nil {
				return
			}
			env, err := wire.Decode(frame)
			if err != nil {
				continue
			}
			if p.handle != nil {
				p.handle(ws, env)
			}
		}
	})
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	return p
}

func (p *fakePeer) endpoint() string {
	return "ws" + strings.TrimPrefix(p.srv.URL, "http")
}

func (p *fakePeer) closeConns() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.conns {
		c.Close()
	}
	p.conns = nil
}

func (p *fakePeer) shutdown() {
	p.closeConns()
	p.srv.Close()
}

func reply(ws *websocket.Conn, msgType, requestID string, payload any) {
	env, _ := wire.NewRequest(msgType, requestID, payload)
	frame, _ := wire.Encode(env)
	websocket.Message.Send(ws, frame)
}

func streamChunk(ws *websocket.Conn, requestID, chunk string, done bool) {
	reply(ws, wire.TypeStream, requestID, map[string]any{"chunk": chunk, "done": done})
}

// newTestClient wires a connected client against the peer. The returned
// cleanup tears the connection down.
func newTestClient(peer *fakePeer, cfg *Config) (*Client, func(), error) {
	corr := correlate.New(nil)
	tr := transport.New(&transport.Config{
		Endpoint:             peer.endpoint(),
		Token:                "test-token",
		BaseDelay:            10 * time.Millisecond,
		MaxReconnectAttempts: 1,
	}, corr, nil)
	if err := tr.Connect(); err != nil {
		return nil, nil, err
	}
	return New(tr, corr, cfg, nil), tr.Disconnect, nil
}
