// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire defines the JSON envelope exchanged with the inference backend.
package wire

import "encoding/json"

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// Envelope type values recognized on the wire. Requests carry a client
// generated requestId; every reply echoes the requestId of the request it
// answers. The backend sends nothing unsolicited.
const (
	TypeChat               = "chat"
	TypeStream             = "stream"
	TypeModels             = "models"
	TypeAction             = "action"
	TypeSettings           = "settings"
	TypeSaveConversation   = "save_conversation"
	TypeSaveMessage        = "save_message"
	TypeLoadConversations  = "load_conversations"
	TypeLoadMessages       = "load_messages"
	TypeDeleteConversation = "delete_conversation"
	TypeError              = "error"
)

// =============================================================================
// ENVELOPE
// =============================================================================

// Envelope is the unit of communication on the socket.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewRequest builds a request envelope, marshaling payload into Data.
// A nil payload produces an empty JSON object, matching what the backend
// expects for parameterless requests.
func NewRequest(msgType string, requestID string, payload any) (Envelope, error) {
	data := json.RawMessage(`{}`)
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		data = raw
	}
	return Envelope{Type: msgType, Data: data, RequestID: requestID}, nil
}

// DecodeData unmarshals the envelope payload into v.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}
